package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/devbydaniel/watson/config"
	"github.com/devbydaniel/watson/internal/backend"
	"github.com/devbydaniel/watson/internal/domain/meeting/usecases"
	"github.com/devbydaniel/watson/internal/editor"
	"github.com/devbydaniel/watson/internal/events"
	"github.com/devbydaniel/watson/internal/ipc"
	"github.com/devbydaniel/watson/internal/jobs"
	"github.com/devbydaniel/watson/internal/notesync"
	"github.com/devbydaniel/watson/internal/notify"
	"github.com/devbydaniel/watson/internal/output"
	"github.com/devbydaniel/watson/internal/recorder"
	"github.com/devbydaniel/watson/internal/settings"
	"github.com/devbydaniel/watson/internal/store"
	"github.com/devbydaniel/watson/internal/views"
)

type App struct {
	Config   *config.Config
	Log      *logrus.Logger
	Toasts   *output.Formatter
	Notifier *notify.Notifier

	Transport *ipc.HTTPTransport
	Backend   *backend.Client
	Ledger    *store.Store
	Jobs      *jobs.Tracker
	Views     *views.Registry
	Editor    *editor.Editor
	Recorder  *recorder.Controller
	Settings  *settings.Controller
	NoteSync  *notesync.Syncer
	Events    *events.Subscriber // nil when no redis_addr is configured

	Retranscribe *usecases.Retranscribe
	Resummarize  *usecases.Resummarize
	Publish      *usecases.Publish
	Delete       *usecases.Delete
	Process      *usecases.ProcessRecording

	redis *redis.Client

	exitOnce sync.Once
	exitErr  error
	exited   chan struct{}
}

// Options overrides the process-wide pieces New would otherwise create.
type Options struct {
	// Transport replaces the HTTP transport, e.g. with an in-memory backend.
	Transport ipc.Transport
	// ToastWriter receives toasts; stderr when nil.
	ToastWriter io.Writer
	// LogWriter receives logs; stderr when nil.
	LogWriter io.Writer
}

func New(cfg *config.Config, opts Options) (*App, error) {
	log := logrus.New()
	log.SetLevel(cfg.LogLevel)
	log.SetOutput(orStderr(opts.LogWriter))

	toasts := output.NewFormatter(orStderr(opts.ToastWriter))
	notifier := notify.New(toasts, notify.NewHistory(nil), notify.Options{
		CallWindow:  cfg.CallDedupWindow,
		EventWindow: cfg.EventDedupWindow,
	})

	a := &App{
		Config:   cfg,
		Log:      log,
		Toasts:   toasts,
		Notifier: notifier,
		exited:   make(chan struct{}),
	}

	transport := opts.Transport
	if transport == nil {
		a.Transport = ipc.NewHTTPTransport(cfg.BackendURL, cfg.RequestTimeout)
		transport = a.Transport
	}
	a.Backend = backend.New(ipc.NewGateway(transport, notifier, log.WithField("component", "ipc")))

	ledger, err := store.Open(cfg.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("opening job ledger: %w", err)
	}
	a.Ledger = ledger

	a.Views = views.New(a.Backend, notifier, log.WithField("component", "views"))
	a.Jobs = jobs.NewTracker(a.Backend, ledger, log.WithField("component", "jobs"))
	a.Jobs.OnChange(a.Views.RefreshQuietly)
	a.Editor = editor.New(a.Backend, a.Views, log.WithField("component", "editor"))

	a.Retranscribe = &usecases.Retranscribe{Backend: a.Backend, Jobs: a.Jobs, Toaster: notifier, Live: a.Editor}
	a.Resummarize = &usecases.Resummarize{Backend: a.Backend, Jobs: a.Jobs, Toaster: notifier, Live: a.Editor}
	a.Publish = &usecases.Publish{Backend: a.Backend, Toaster: notifier, Refresher: a.Views, Live: a.Editor}
	a.Delete = &usecases.Delete{Backend: a.Backend, Refresher: a.Views, Navigator: a.Views, Live: a.Editor}
	a.Process = &usecases.ProcessRecording{Backend: a.Backend, Jobs: a.Jobs, Toaster: notifier}

	a.Recorder = recorder.New(a.Backend, a.Process, notifier, a.Views, log.WithField("component", "recorder"))
	a.Settings = settings.New(a.Backend, a.Views, log.WithField("component", "settings"))
	a.NoteSync = notesync.New(a.Backend, log.WithField("component", "notesync"))

	if cfg.RedisAddr != "" {
		a.redis = redis.NewClient(redisOptions(cfg.RedisAddr))
		a.Events = events.NewSubscriber(a.redis, cfg.EventsChannel, notifier, func(ctx context.Context) {
			if err := a.Exit(ctx); err != nil {
				log.WithError(err).Warn("exit after close request was incomplete")
			}
		}, log.WithField("component", "events"))
	}

	return a, nil
}

func redisOptions(addr string) *redis.Options {
	if opts, err := redis.ParseURL(addr); err == nil {
		return opts
	}
	return &redis.Options{Addr: addr}
}

func orStderr(w io.Writer) io.Writer {
	if w == nil {
		return os.Stderr
	}
	return w
}

// Start clears jobs left running by a previous process and loads the views.
// The backend resets its counters when it starts, so stale ledger rows are abandoned.
func (a *App) Start(ctx context.Context) error {
	n, err := a.Ledger.AbandonRunning(ctx)
	if err != nil {
		return fmt.Errorf("cleaning job ledger: %w", err)
	}
	if n > 0 {
		a.Log.WithField("jobs", n).Info("marked stale jobs abandoned")
	}
	return a.Views.Refresh(ctx)
}

// Flush writes every dirty shadow back: the open meeting, the scratch note and the settings.
func (a *App) Flush(ctx context.Context) error {
	return errors.Join(
		a.Editor.Close(ctx),
		a.Recorder.Unmount(ctx),
		a.Settings.Flush(ctx),
	)
}

// Exit flushes once, then asks the backend to exit. Later calls return the first result.
func (a *App) Exit(ctx context.Context) error {
	a.exitOnce.Do(func() {
		defer close(a.exited)
		if err := a.Flush(ctx); err != nil {
			a.Log.WithError(err).Error("final flush failed")
			a.exitErr = err
		}
		if err := a.Backend.Exit(ctx); err != nil {
			a.exitErr = errors.Join(a.exitErr, err)
		}
	})
	return a.exitErr
}

// Exited is closed once Exit has run.
func (a *App) Exited() <-chan struct{} {
	return a.exited
}

// ErrEventsDisabled is returned by PingEvents when no redis_addr is configured.
var ErrEventsDisabled = errors.New("backend events are not configured")

// PingEvents checks the event broker.
func (a *App) PingEvents(ctx context.Context) error {
	if a.redis == nil {
		return ErrEventsDisabled
	}
	return a.redis.Ping(ctx).Err()
}

// Close waits for background jobs and releases local resources. It does not
// flush; callers run Flush or Exit first.
func (a *App) Close() error {
	a.Jobs.Wait()
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.Ledger.Close())
	return errors.Join(errs...)
}
