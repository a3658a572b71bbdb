package ipc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/devbydaniel/watson/internal/version"
)

// RequestIDHeader carries the per-call id so backend logs can be correlated.
const RequestIDHeader = "X-Request-Id"

// HTTPTransport posts operations to a local backend as {"params": ...}.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport for baseURL. A zero timeout means none.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Params any `json:"params"`
}

func (t *HTTPTransport) Call(ctx context.Context, method string, params any) (*Response, error) {
	body, err := sonic.Marshal(envelope{Params: params})
	if err != nil {
		return nil, fmt.Errorf("encoding params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/invoke/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())
	req.Header.Set("User-Agent", version.UserAgent())

	res, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusInternalServerError || res.StatusCode == http.StatusNotFound {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("backend responded %s: %s", res.Status, strings.TrimSpace(string(msg)))
	}

	var resp Response
	if err := sonic.ConfigStd.NewDecoder(res.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &resp, nil
}

// Ping checks that the backend answers at all.
func (t *HTTPTransport) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	res, err := t.client.Do(req)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health: %s", res.Status)
	}
	return nil
}
