package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
)

// Response is the envelope every backend operation answers with.
// Exactly one of Error and Result is set.
type Response struct {
	Error  *ErrorBody `json:"error,omitempty"`
	Result *Result    `json:"result,omitempty"`
}

// ErrorBody carries the backend's error message.
type ErrorBody struct {
	Message string `json:"message"`
}

// Result wraps the operation payload.
type Result struct {
	Data json.RawMessage `json:"data"`
}

// Transport delivers one named operation to the backend.
type Transport interface {
	Call(ctx context.Context, method string, params any) (*Response, error)
}

// BackendError is a failure reported by the backend itself.
type BackendError struct {
	Method  string
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %s", e.Method, e.Message)
}

// ErrMalformedResponse is returned when the envelope carries neither error nor result.
var ErrMalformedResponse = errors.New("malformed backend response")

// Alerter is told about failed calls. notify.Notifier satisfies it.
type Alerter interface {
	CallFailed(message string) bool
}

// Gateway is the single entry point for backend operations.
type Gateway struct {
	transport Transport
	alerter   Alerter
	log       logrus.FieldLogger
}

// NewGateway creates a gateway. alerter may be nil.
func NewGateway(transport Transport, alerter Alerter, log logrus.FieldLogger) *Gateway {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Gateway{transport: transport, alerter: alerter, log: log}
}

// Invoke runs method with params and decodes result.data into out (which may be nil).
// Backend failures come back as *BackendError and raise a de-duplicated alert.
func (g *Gateway) Invoke(ctx context.Context, method string, params any, out any) error {
	if params == nil {
		params = struct{}{}
	}
	log := g.log.WithField("method", method)

	resp, err := g.transport.Call(ctx, method, params)
	if err != nil {
		log.WithError(err).Warn("backend call failed")
		g.alert(err.Error())
		return fmt.Errorf("calling %s: %w", method, err)
	}
	if resp == nil {
		g.alert(ErrMalformedResponse.Error())
		return fmt.Errorf("calling %s: %w", method, ErrMalformedResponse)
	}
	if resp.Error != nil {
		log.WithField("backend_error", resp.Error.Message).Warn("backend returned an error")
		g.alert(resp.Error.Message)
		return &BackendError{Method: method, Message: resp.Error.Message}
	}
	if resp.Result == nil {
		g.alert(ErrMalformedResponse.Error())
		return fmt.Errorf("calling %s: %w", method, ErrMalformedResponse)
	}

	log.Debug("backend call succeeded")
	if out == nil || isNull(resp.Result.Data) {
		return nil
	}
	if err := sonic.Unmarshal(resp.Result.Data, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

func (g *Gateway) alert(message string) {
	if g.alerter != nil {
		g.alerter.CallFailed(message)
	}
}

func isNull(data json.RawMessage) bool {
	return len(data) == 0 || string(data) == "null"
}
