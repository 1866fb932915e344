package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LastRun records the outcome of the most recent completed parsing run.
type LastRun struct {
	TaskID       string `json:"task_id"`
	Category     string `json:"category"`
	ResultCount  int    `json:"result_count"`
	ExportPath   string `json:"export_path,omitempty"`
	FinishedAt   int64  `json:"finished_at"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// GetAppDataDir returns the application data directory
func GetAppDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	appDataDir := filepath.Join(homeDir, ".tgstat-cli")
	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataDir, nil
}

func lastRunFilePath() (string, error) {
	appDataDir, err := GetAppDataDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(appDataDir, "last_run.json"), nil
}

// SaveLastRun writes the last-run record to the app data directory
func SaveLastRun(record LastRun) error {
	filePath, err := lastRunFilePath()
	if err != nil {
		return err
	}

	if record.FinishedAt == 0 {
		record.FinishedAt = time.Now().Unix()
	}

	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal last-run record: %w", err)
	}

	if err := os.WriteFile(filePath, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write last-run file: %w", err)
	}

	return nil
}

// GetLastRun reads the last-run record. Returns nil when no run has been
// recorded yet.
func GetLastRun() (*LastRun, error) {
	filePath, err := lastRunFilePath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(filePath); os.IsNotExist(statErr) {
		return nil, nil
	}

	fileData, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read last-run file: %w", err)
	}

	var record LastRun
	if err := json.Unmarshal(fileData, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal last-run record: %w", err)
	}

	return &record, nil
}
