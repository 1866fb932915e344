package session

import (
	"errors"
	"sync"

	"github.com/tgstat-tools/tgstat-cli/internal/models"
)

// Phase is the lifecycle phase of the tracked task session. It collapses
// the scattered task id / status / results / error fields into a single
// tagged state so that invalid combinations (results without completion,
// a task without an identifier) cannot be represented.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhasePolling    Phase = "polling"
	PhaseCompleted  Phase = "completed"
	PhaseFailed     Phase = "failed"
)

// ErrStale marks an update carrying a superseded generation. Stale updates
// are discarded, never merged into the current session.
var ErrStale = errors.New("stale session generation")

// ErrOutOfOrder marks a status update that would move a task backwards.
var ErrOutOfOrder = errors.New("out-of-order status update")

// Snapshot is a read-only copy of the current session state handed to the
// presentation layer.
type Snapshot struct {
	Generation   uint64
	Phase        Phase
	TaskID       string
	Category     string
	ContentTypes []models.ContentType
	Status       models.ParsingStatus
	Progress     int
	TotalPages   int
	Results      []models.ResultRecord
	ErrorMessage string
}

// Store holds the single authoritative view of the current task session.
// All mutation goes through the generation-checked methods below; readers
// only ever see value snapshots.
type Store struct {
	mu         sync.RWMutex
	generation uint64
	snapshot   Snapshot
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		snapshot: Snapshot{Phase: PhaseIdle},
	}
}

// Begin replaces the session wholesale for a new submission attempt and
// returns the generation that tags it. Any update carrying an older
// generation is rejected from this point on.
func (s *Store) Begin(category string, contentTypes []models.ContentType) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.snapshot = Snapshot{
		Generation:   s.generation,
		Phase:        PhaseSubmitting,
		Category:     category,
		ContentTypes: append([]models.ContentType(nil), contentTypes...),
		Status:       models.StatusPending,
	}
	return s.generation
}

// Abort rolls a failed submission back to idle. The generation stays
// consumed so late responses from the attempt remain droppable.
func (s *Store) Abort(generation uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStale
	}

	s.snapshot = Snapshot{Generation: s.generation, Phase: PhaseIdle}
	return nil
}

// Activate records the task identifier assigned by the backend and moves
// the session into the polling phase.
func (s *Store) Activate(generation uint64, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStale
	}
	if taskID == "" {
		return errors.New("task id cannot be empty")
	}

	s.snapshot.Phase = PhasePolling
	s.snapshot.TaskID = taskID
	s.snapshot.Status = models.StatusPending
	s.snapshot.Progress = 0
	return nil
}

// ApplyStatus merges a status snapshot into the session. Updates from a
// superseded generation or moving the status backwards are discarded.
func (s *Store) ApplyStatus(generation uint64, status *models.StatusResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStale
	}
	if s.snapshot.Status != status.Status && !s.snapshot.Status.CanTransition(status.Status) {
		return ErrOutOfOrder
	}

	s.snapshot.Status = status.Status
	s.snapshot.Progress = status.Progress
	s.snapshot.TotalPages = status.TotalPages

	if status.Status == models.StatusFailed {
		s.snapshot.Phase = PhaseFailed
		s.snapshot.ErrorMessage = status.ErrorMessage
	}
	return nil
}

// Complete attaches the fetched results. Results are only accepted once
// the session has observed the completed status.
func (s *Store) Complete(generation uint64, results []models.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStale
	}
	if s.snapshot.Status != models.StatusCompleted {
		return errors.New("results cannot be set before the task is completed")
	}

	s.snapshot.Phase = PhaseCompleted
	s.snapshot.Results = append([]models.ResultRecord(nil), results...)
	return nil
}

// Fail marks the session as failed with the given message. Used for
// terminal backend failures and for non-retried fetch errors.
func (s *Store) Fail(generation uint64, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		return ErrStale
	}

	s.snapshot.Phase = PhaseFailed
	s.snapshot.ErrorMessage = message
	return nil
}

// Generation returns the generation tagging the current session.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Snapshot returns a copy of the current session state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.snapshot
	snapshot.Results = append([]models.ResultRecord(nil), s.snapshot.Results...)
	snapshot.ContentTypes = append([]models.ContentType(nil), s.snapshot.ContentTypes...)
	return snapshot
}
