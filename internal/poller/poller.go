package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/tgstat-tools/tgstat-cli/internal/logger"
	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/session"
)

// TaskClient is the slice of the API client the poller depends on.
type TaskClient interface {
	ParsingStatus(taskID string) (*models.StatusResponse, error)
	ParsingResults(taskID string) ([]models.ResultRecord, error)
}

// TerminalError is a backend-reported task failure. The message is
// surfaced to the user verbatim and polling stops permanently.
type TerminalError struct {
	TaskID  string
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("task %s failed: %s", e.TaskID, e.Message)
}

// FetchError is a failed result retrieval after completion was observed.
// The fetch is one-shot; the poller does not return to polling.
type FetchError struct {
	TaskID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch results for task %s: %v", e.TaskID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExhaustedError is reported when transient poll failures hit the
// configured bound.
type ExhaustedError struct {
	TaskID   string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("gave up polling task %s after %d consecutive failures: %v", e.TaskID, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error { return e.Err }

// Poller drives a single task to a terminal outcome. Every update it
// applies carries the generation captured at start, so a loop belonging
// to a superseded submission stops without touching the session.
type Poller struct {
	client          TaskClient
	store           *session.Store
	pollInterval    time.Duration
	backoffInterval time.Duration
	// maxFailures bounds consecutive transient failures; zero retries forever.
	maxFailures int
	onUpdate    func(session.Snapshot)
}

// New creates a poller bound to the given client and session store.
func New(client TaskClient, store *session.Store, pollInterval, backoffInterval time.Duration, maxFailures int) *Poller {
	return &Poller{
		client:          client,
		store:           store,
		pollInterval:    pollInterval,
		backoffInterval: backoffInterval,
		maxFailures:     maxFailures,
	}
}

// OnUpdate registers an observer invoked after every applied session
// change. Used by the monitoring layer; may be nil.
func (p *Poller) OnUpdate(fn func(session.Snapshot)) {
	p.onUpdate = fn
}

func (p *Poller) notify() {
	if p.onUpdate != nil {
		p.onUpdate(p.store.Snapshot())
	}
}

// Run polls the task until it reaches a terminal status, the generation is
// superseded, or the context is cancelled. The first query is issued
// immediately; successful non-terminal queries reschedule at the poll
// interval and transient failures at the longer backoff interval. On
// completion the result fetch happens exactly once.
func (p *Poller) Run(ctx context.Context, generation uint64, taskID string) error {
	failures := 0
	delay := time.Duration(0)

	for {
		if err := wait(ctx, delay); err != nil {
			return err
		}
		if p.store.Generation() != generation {
			logger.Debug("Polling loop for task %s superseded, stopping", taskID)
			return nil
		}

		status, err := p.client.ParsingStatus(taskID)
		if err != nil {
			failures++
			if p.maxFailures > 0 && failures >= p.maxFailures {
				exhausted := &ExhaustedError{TaskID: taskID, Attempts: failures, Err: err}
				if failErr := p.store.Fail(generation, exhausted.Error()); failErr == session.ErrStale {
					return nil
				}
				p.notify()
				return exhausted
			}

			logger.Debug("Status query for task %s failed (attempt %d), backing off: %v", taskID, failures, err)
			delay = p.backoffInterval
			continue
		}

		failures = 0
		switch applyErr := p.store.ApplyStatus(generation, status); applyErr {
		case nil:
		case session.ErrStale:
			logger.Debug("Dropping stale status for task %s", taskID)
			return nil
		case session.ErrOutOfOrder:
			logger.Debug("Dropping out-of-order status %q for task %s", status.Status, taskID)
			delay = p.pollInterval
			continue
		default:
			return applyErr
		}
		p.notify()

		switch status.Status {
		case models.StatusCompleted:
			return p.fetchResults(generation, taskID)
		case models.StatusFailed:
			return &TerminalError{TaskID: taskID, Message: status.ErrorMessage}
		default:
			delay = p.pollInterval
		}
	}
}

// fetchResults retrieves the finalized result collection. One-shot: a
// failure here is recorded on the session and never retried.
func (p *Poller) fetchResults(generation uint64, taskID string) error {
	results, err := p.client.ParsingResults(taskID)
	if err != nil {
		fetchErr := &FetchError{TaskID: taskID, Err: err}
		if failErr := p.store.Fail(generation, fetchErr.Error()); failErr == session.ErrStale {
			return nil
		}
		p.notify()
		return fetchErr
	}

	if err := p.store.Complete(generation, results); err != nil {
		if err == session.ErrStale {
			return nil
		}
		return err
	}
	p.notify()

	logger.Debug("Task %s completed with %d results", taskID, len(results))
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
