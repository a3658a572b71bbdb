package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event names pushed by the backend.
const (
	EventError          = "ERROR"
	EventWarning        = "WARNING"
	EventCloseRequested = "CLOSE_REQUESTED"
)

// Event is one backend-pushed message.
type Event struct {
	Event   string  `json:"event"`
	Payload Payload `json:"payload"`
}

// Payload carries the event text.
type Payload struct {
	Message string `json:"message"`
}

// Alerts shows pushed errors and warnings. notify.Notifier satisfies it.
type Alerts interface {
	Critical(message string) bool
	Warning(message string) bool
}

// Subscriber consumes backend events from a Redis channel.
type Subscriber struct {
	rc      *redis.Client
	channel string
	alerts  Alerts
	onClose func(context.Context)
	log     logrus.FieldLogger
	retry   time.Duration

	readyOnce sync.Once
	ready     chan struct{}
}

// NewSubscriber creates a subscriber. onClose runs when the backend asks the client to close.
func NewSubscriber(rc *redis.Client, channel string, alerts Alerts, onClose func(context.Context), log logrus.FieldLogger) *Subscriber {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Subscriber{
		rc:      rc,
		channel: channel,
		alerts:  alerts,
		onClose: onClose,
		log:     log.WithField("channel", channel),
		retry:   time.Second,
		ready:   make(chan struct{}),
	}
}

// Ready is closed once the first subscription is confirmed.
func (s *Subscriber) Ready() <-chan struct{} {
	return s.ready
}

// Run consumes events until ctx is done, resubscribing when the connection drops.
func (s *Subscriber) Run(ctx context.Context) error {
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.log.WithError(err).Warn("event subscription lost, retrying")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.retry):
		}
	}
}

func (s *Subscriber) consume(ctx context.Context) error {
	sub := s.rc.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	s.readyOnce.Do(func() { close(s.ready) })
	s.log.Debug("subscribed to backend events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription channel closed")
			}
			s.Handle(ctx, msg.Payload)
		}
	}
}

// Handle dispatches one raw event. Malformed and unknown events are logged and dropped.
func (s *Subscriber) Handle(ctx context.Context, raw string) {
	var ev Event
	if err := sonic.UnmarshalString(raw, &ev); err != nil {
		s.log.WithError(err).Warn("unable to parse backend event")
		return
	}
	switch ev.Event {
	case EventError:
		s.alerts.Critical(ev.Payload.Message)
	case EventWarning:
		s.alerts.Warning(ev.Payload.Message)
	case EventCloseRequested:
		s.log.Info("backend requested close")
		if s.onClose != nil {
			s.onClose(ctx)
		}
	default:
		s.log.WithField("event", ev.Event).Warn("unknown backend event, ignoring it")
	}
}

// Publish sends ev on channel.
func Publish(ctx context.Context, rc *redis.Client, channel string, ev Event) error {
	data, err := sonic.MarshalString(ev)
	if err != nil {
		return err
	}
	return rc.Publish(ctx, channel, data).Err()
}
