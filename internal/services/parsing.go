package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tgstat-tools/tgstat-cli/internal/client"
	"github.com/tgstat-tools/tgstat-cli/internal/config"
	"github.com/tgstat-tools/tgstat-cli/internal/export"
	"github.com/tgstat-tools/tgstat-cli/internal/logger"
	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/parser"
	"github.com/tgstat-tools/tgstat-cli/internal/poller"
	"github.com/tgstat-tools/tgstat-cli/internal/session"
	"github.com/tgstat-tools/tgstat-cli/internal/storage"
)

// SubmissionError is a rejected or unreachable submission. No task session
// survives it.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ParsingService orchestrates the full parsing task lifecycle: validation,
// submission, polling, result retrieval, and export.
type ParsingService struct {
	config *config.Config
	client *client.APIClient
	store  *session.Store
	poller *poller.Poller
}

// NewParsingService creates a new parsing service with all dependencies
func NewParsingService(cfg *config.Config) *ParsingService {
	apiClient := client.NewAPIClient(cfg)
	store := session.NewStore()

	return &ParsingService{
		config: cfg,
		client: apiClient,
		store:  store,
		poller: poller.New(apiClient, store, cfg.PollInterval, cfg.BackoffInterval, cfg.MaxPollFailures),
	}
}

// OnUpdate registers an observer for session snapshot changes.
func (s *ParsingService) OnUpdate(fn func(session.Snapshot)) {
	s.poller.OnUpdate(fn)
}

// Snapshot returns the current session snapshot for the presentation layer.
func (s *ParsingService) Snapshot() session.Snapshot {
	return s.store.Snapshot()
}

// Submit validates the request and starts a new remote parsing task. The
// session is replaced wholesale only when the submission succeeds; a
// validation or submission failure leaves no active session behind.
func (s *ParsingService) Submit(request models.ParsingRequest) (uint64, string, error) {
	if err := parser.ValidateRequest(request); err != nil {
		return 0, "", err
	}

	generation := s.store.Begin(request.Category, request.ContentTypes)

	taskID, err := s.client.StartParsing(request)
	if err != nil {
		if abortErr := s.store.Abort(generation); abortErr != nil {
			logger.Debug("Could not roll back superseded submission: %v", abortErr)
		}
		return 0, "", &SubmissionError{Err: err}
	}

	if err := s.store.Activate(generation, taskID); err != nil {
		return 0, "", fmt.Errorf("failed to activate session: %w", err)
	}

	logger.Info("Parsing task %s submitted for category %q (%d pages)", taskID, request.Category, request.MaxPages)
	return generation, taskID, nil
}

// Run drives a parsing request through its full lifecycle and returns the
// final session snapshot. Transient poll failures are recovered internally;
// terminal failures and fetch errors come back as errors alongside the
// snapshot that records them.
func (s *ParsingService) Run(ctx context.Context, request models.ParsingRequest) (session.Snapshot, error) {
	generation, taskID, err := s.Submit(request)
	if err != nil {
		return s.store.Snapshot(), err
	}

	if err := s.poller.Run(ctx, generation, taskID); err != nil {
		snapshot := s.store.Snapshot()
		if snapshot.Phase == session.PhaseFailed {
			if saveErr := storage.SaveLastRun(storage.LastRun{
				TaskID:       snapshot.TaskID,
				Category:     snapshot.Category,
				ErrorMessage: snapshot.ErrorMessage,
			}); saveErr != nil {
				logger.Warn("Failed to record failed run: %v", saveErr)
			}
		}
		return snapshot, err
	}

	return s.store.Snapshot(), nil
}

// Export encodes the completed session's results, writes the artifact to
// the configured export directory, and records the run. Export failures
// never touch the task session.
func (s *ParsingService) Export(snapshot session.Snapshot) (string, error) {
	if snapshot.Phase != session.PhaseCompleted {
		return "", &export.Error{Err: fmt.Errorf("no completed results to export (phase %s)", snapshot.Phase)}
	}

	data, filename := export.Encode(snapshot.Results, snapshot.Category, time.Now())
	path, err := export.WriteArtifact(s.config.ExportDir, filename, data)
	if err != nil {
		return "", err
	}

	if err := storage.SaveLastRun(storage.LastRun{
		TaskID:      snapshot.TaskID,
		Category:    snapshot.Category,
		ResultCount: len(snapshot.Results),
		ExportPath:  path,
	}); err != nil {
		logger.Warn("Failed to record last run: %v", err)
	}

	logger.Info("Exported %d results to %s", len(snapshot.Results), path)
	return path, nil
}

// DownloadServerExport fetches the server-rendered export artifact for a
// task and writes it to the export directory under the filename the
// server announces.
func (s *ParsingService) DownloadServerExport(taskID string) (string, error) {
	data, filename, err := s.client.ExportResults(taskID)
	if err != nil {
		return "", &export.Error{Err: err}
	}

	return export.WriteArtifact(s.config.ExportDir, filename, data)
}

// WaitForAPIReady waits for the backend to become ready
func (s *ParsingService) WaitForAPIReady(maxAttempts int) bool {
	return s.client.WaitForAPIReady(maxAttempts)
}
