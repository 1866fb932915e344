package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tgstat-tools/tgstat-cli/internal/logger"
	"github.com/tgstat-tools/tgstat-cli/internal/models"
	"github.com/tgstat-tools/tgstat-cli/internal/services"
	"github.com/tgstat-tools/tgstat-cli/internal/session"
)

// ParseMonitor runs a parsing task while mirroring its session snapshots
// into the TUI.
type ParseMonitor struct {
	service *services.ParsingService
	program *tea.Program
}

func NewParseMonitor(service *services.ParsingService) *ParseMonitor {
	return &ParseMonitor{
		service: service,
	}
}

func (pm *ParseMonitor) AddLog(message string) {
	if pm.program != nil {
		pm.program.Send(LogMessage{
			Message: message,
		})
	}
}

func (pm *ParseMonitor) sendSnapshot(snapshot session.Snapshot) {
	if pm.program != nil {
		pm.program.Send(SnapshotMsg{Snapshot: snapshot})
	}
}

// Run drives the parsing request to completion underneath the TUI and
// blocks until the user quits.
func (pm *ParseMonitor) Run(ctx context.Context, request models.ParsingRequest) error {
	model := NewModel()
	pm.program = tea.NewProgram(model, tea.WithAltScreen())

	pm.service.OnUpdate(pm.sendSnapshot)

	go func() {
		pm.AddLog(fmt.Sprintf("Submitting parsing task for %q (%d pages)", request.Category, request.MaxPages))

		snapshot, err := pm.service.Run(ctx, request)
		pm.sendSnapshot(snapshot)

		if err != nil {
			logger.Error("Parsing run failed: %v", err)
			pm.AddLog(fmt.Sprintf("❌ %v", err))
			pm.program.Send(DoneMsg{Err: err})
			return
		}

		pm.AddLog(fmt.Sprintf("✅ Task %s completed with %d results", snapshot.TaskID, len(snapshot.Results)))

		exportPath, err := pm.service.Export(snapshot)
		if err != nil {
			logger.Error("Export failed: %v", err)
			pm.AddLog(fmt.Sprintf("❌ Export failed: %v", err))
			pm.program.Send(DoneMsg{Err: err})
			return
		}

		pm.AddLog(fmt.Sprintf("💾 Exported to %s", exportPath))
		pm.program.Send(DoneMsg{ExportPath: exportPath})
	}()

	if _, err := pm.program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	return nil
}
