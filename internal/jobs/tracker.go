package jobs

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Kind names a long-running backend job.
type Kind string

const (
	KindTranscribe  Kind = "TRANSCRIBE"
	KindSummarize   Kind = "SUMMARIZE"
	KindImproveNote Kind = "IMPROVE_NOTE"
	KindResummarize Kind = "RESUMMARIZE"
)

// Counter maintains the backend's pending-operations counter.
type Counter interface {
	IncrementOps(ctx context.Context, id string) error
	DecrementOps(ctx context.Context, id string) error
}

// Ledger records job runs. store.Store satisfies it.
type Ledger interface {
	BeginJob(ctx context.Context, meetingID, kind string) (int64, error)
	FinishJob(ctx context.Context, id int64, jobErr error) error
}

// Tracker runs jobs against a meeting, keeping its counter balanced and
// serializing jobs on the same meeting.
type Tracker struct {
	counter Counter
	ledger  Ledger
	locks   *KeyedMutex
	log     logrus.FieldLogger

	mu       sync.Mutex
	onChange []func(context.Context)

	wg sync.WaitGroup
}

// NewTracker creates a tracker. ledger may be nil.
func NewTracker(counter Counter, ledger Ledger, log logrus.FieldLogger) *Tracker {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Tracker{counter: counter, ledger: ledger, locks: NewKeyedMutex(), log: log}
}

// OnChange registers fn to run whenever a counter moves.
func (t *Tracker) OnChange(fn func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onChange = append(t.onChange, fn)
}

func (t *Tracker) changed(ctx context.Context) {
	t.mu.Lock()
	hooks := append([]func(context.Context){}, t.onChange...)
	t.mu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// Run increments the meeting's counter, waits for the meeting's lock, runs fn
// and decrements exactly once. If the increment fails fn is not run and
// nothing is decremented.
func (t *Tracker) Run(ctx context.Context, meetingID string, kind Kind, fn func(context.Context) error) error {
	log := t.log.WithFields(logrus.Fields{"meeting_id": meetingID, "job": kind})

	if err := t.counter.IncrementOps(ctx, meetingID); err != nil {
		return fmt.Errorf("raising pending counter: %w", err)
	}
	defer func() {
		// the job's own context may be cancelled; the counter must still drop
		dctx := context.WithoutCancel(ctx)
		if err := t.counter.DecrementOps(dctx, meetingID); err != nil {
			log.WithError(err).Error("failed to lower pending counter")
		}
		t.changed(dctx)
	}()
	t.changed(ctx)

	return t.locked(ctx, meetingID, kind, log, fn)
}

// Serialize runs fn under the meeting's lock without touching the counter.
func (t *Tracker) Serialize(ctx context.Context, meetingID string, kind Kind, fn func(context.Context) error) error {
	log := t.log.WithFields(logrus.Fields{"meeting_id": meetingID, "job": kind})
	return t.locked(ctx, meetingID, kind, log, fn)
}

func (t *Tracker) locked(ctx context.Context, meetingID string, kind Kind, log logrus.FieldLogger, fn func(context.Context) error) error {
	if err := t.locks.Lock(ctx, meetingID); err != nil {
		return fmt.Errorf("waiting for %s: %w", meetingID, err)
	}
	defer t.locks.Unlock(meetingID)

	var jobID int64
	if t.ledger != nil {
		id, err := t.ledger.BeginJob(ctx, meetingID, string(kind))
		if err != nil {
			log.WithError(err).Warn("could not record job start")
		}
		jobID = id
	}

	log.Info("job started")
	err := fn(ctx)
	if err != nil {
		log.WithError(err).Warn("job failed")
	} else {
		log.Info("job finished")
	}

	if t.ledger != nil && jobID != 0 {
		if ferr := t.ledger.FinishJob(context.WithoutCancel(ctx), jobID, err); ferr != nil {
			log.WithError(ferr).Warn("could not record job result")
		}
	}
	return err
}

// Go runs Run on a new goroutine. The channel receives its result.
func (t *Tracker) Go(ctx context.Context, meetingID string, kind Kind, fn func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		done <- t.Run(ctx, meetingID, kind, fn)
	}()
	return done
}

// Wait blocks until every job started with Go has returned.
func (t *Tracker) Wait() {
	t.wg.Wait()
}
