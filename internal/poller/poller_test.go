package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/session"
)

type step struct {
	status *models.StatusResponse
	err    error
}

// fakeClient replays a scripted sequence of status responses; the last
// step repeats once the script runs out.
type fakeClient struct {
	mu          sync.Mutex
	steps       []step
	statusCalls int
	fetchCalls  int
	results     []models.ResultRecord
	fetchErr    error
	onStatus    func(call int)
}

func (f *fakeClient) ParsingStatus(taskID string) (*models.StatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onStatus != nil {
		f.onStatus(f.statusCalls)
	}

	i := f.statusCalls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.statusCalls++

	s := f.steps[i]
	return s.status, s.err
}

func (f *fakeClient) ParsingResults(taskID string) ([]models.ResultRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.results, nil
}

func (f *fakeClient) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls, f.fetchCalls
}

func newTestPoller(client *fakeClient, maxFailures int) (*Poller, *session.Store, uint64) {
	store := session.NewStore()
	generation := store.Begin("crypto", []models.ContentType{models.ContentTypeChannels})
	if err := store.Activate(generation, "abc123"); err != nil {
		panic(err)
	}
	return New(client, store, time.Millisecond, 2*time.Millisecond, maxFailures), store, generation
}

func TestRun_CompletesAndFetchesOnce(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusPending}},
			{status: &models.StatusResponse{Status: models.StatusRunning, Progress: 5, TotalPages: 3}},
			{status: &models.StatusResponse{Status: models.StatusCompleted, Progress: 24}},
		},
		results: []models.ResultRecord{{Name: "a"}, {Name: "b"}},
	}
	p, store, generation := newTestPoller(client, 0)

	if err := p.Run(context.Background(), generation, "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, fetches := client.counts()
	if fetches != 1 {
		t.Errorf("expected exactly one fetch, got %d", fetches)
	}

	snapshot := store.Snapshot()
	if snapshot.Phase != session.PhaseCompleted {
		t.Errorf("expected completed phase, got %s", snapshot.Phase)
	}
	if len(snapshot.Results) != 2 {
		t.Errorf("expected 2 results, got %d", len(snapshot.Results))
	}
}

func TestRun_TransientFailuresRecover(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{err: errors.New("connection refused")},
			{err: errors.New("connection refused")},
			{status: &models.StatusResponse{Status: models.StatusCompleted, Progress: 8}},
		},
		results: []models.ResultRecord{{Name: "a"}},
	}
	p, store, generation := newTestPoller(client, 0)

	if err := p.Run(context.Background(), generation, "abc123"); err != nil {
		t.Fatalf("transient failures must not surface: %v", err)
	}

	snapshot := store.Snapshot()
	if snapshot.Phase != session.PhaseCompleted {
		t.Errorf("expected completed phase, got %s", snapshot.Phase)
	}
	if snapshot.ErrorMessage != "" {
		t.Errorf("transient failures leaked into the session: %q", snapshot.ErrorMessage)
	}
}

func TestRun_TerminalFailure(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusRunning}},
			{status: &models.StatusResponse{Status: models.StatusFailed, ErrorMessage: "site blocked"}},
		},
	}
	p, store, generation := newTestPoller(client, 0)

	err := p.Run(context.Background(), generation, "abc123")
	var terminalErr *TerminalError
	if !errors.As(err, &terminalErr) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if terminalErr.Message != "site blocked" {
		t.Errorf("expected verbatim message, got %q", terminalErr.Message)
	}

	_, fetches := client.counts()
	if fetches != 0 {
		t.Errorf("fetch must never run for a failed task, got %d calls", fetches)
	}

	snapshot := store.Snapshot()
	if snapshot.Phase != session.PhaseFailed || snapshot.ErrorMessage != "site blocked" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestRun_FetchErrorNotRetried(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusCompleted}},
		},
		fetchErr: errors.New("boom"),
	}
	p, store, generation := newTestPoller(client, 0)

	err := p.Run(context.Background(), generation, "abc123")
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected FetchError, got %v", err)
	}

	_, fetches := client.counts()
	if fetches != 1 {
		t.Errorf("fetch is one-shot, got %d calls", fetches)
	}

	if store.Snapshot().Phase != session.PhaseFailed {
		t.Error("fetch failure must surface on the session")
	}
}

func TestRun_FailureBoundExhausted(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{err: errors.New("connection refused")},
		},
	}
	p, store, generation := newTestPoller(client, 3)

	err := p.Run(context.Background(), generation, "abc123")
	var exhausted *ExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", exhausted.Attempts)
	}

	if store.Snapshot().Phase != session.PhaseFailed {
		t.Error("exhausted polling must surface on the session")
	}
}

func TestRun_SupersededGenerationStops(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusCompleted}},
		},
		results: []models.ResultRecord{{Name: "stale"}},
	}
	p, store, generation := newTestPoller(client, 0)

	// A new submission supersedes the loop before it asks once.
	store.Begin("news", []models.ContentType{models.ContentTypeChats})

	if err := p.Run(context.Background(), generation, "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	statuses, fetches := client.counts()
	if statuses != 0 || fetches != 0 {
		t.Errorf("superseded loop must not query, got %d status / %d fetch calls", statuses, fetches)
	}

	snapshot := store.Snapshot()
	if snapshot.Category != "news" || len(snapshot.Results) != 0 {
		t.Errorf("stale loop touched the new session: %+v", snapshot)
	}
}

func TestRun_SupersededMidLoop(t *testing.T) {
	var store *session.Store
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusRunning}},
			{status: &models.StatusResponse{Status: models.StatusCompleted}},
		},
		results: []models.ResultRecord{{Name: "stale"}},
	}
	// A new submission lands between the first and second queries.
	client.onStatus = func(call int) {
		if call == 1 {
			store.Begin("news", []models.ContentType{models.ContentTypeChats})
		}
	}

	p, s, generation := newTestPoller(client, 0)
	store = s

	if err := p.Run(context.Background(), generation, "abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, fetches := client.counts()
	if fetches != 0 {
		t.Errorf("stale completion must not trigger a fetch, got %d calls", fetches)
	}

	snapshot := store.Snapshot()
	if snapshot.Category != "news" || snapshot.Phase != session.PhaseSubmitting {
		t.Errorf("stale response overwrote the new session: %+v", snapshot)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	client := &fakeClient{
		steps: []step{
			{status: &models.StatusResponse{Status: models.StatusPending}},
		},
	}
	p, _, generation := newTestPoller(client, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := p.Run(ctx, generation, "abc123"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline error, got %v", err)
	}
}
