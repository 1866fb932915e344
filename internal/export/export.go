package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tgstat-tools/tgstat-cli/internal/models"
)

// LinkUnavailable is the placeholder written when a record carries no link.
const LinkUnavailable = "not available"

// Error reports a failed export encoding or delivery. It never affects
// the underlying task session.
type Error struct {
	Filename string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("export %s failed: %v", e.Filename, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Encode serializes results into the line-oriented export artifact and
// derives a collision-free filename from the category and the given
// timestamp. Lines are 1-indexed in the form
// "{index}. {name} \ {link} \ {subscribers}". Pure: no side effects
// beyond the returned bytes.
func Encode(results []models.ResultRecord, category string, now time.Time) ([]byte, string) {
	lines := make([]string, 0, len(results))
	for i, result := range results {
		link := result.Link
		if link == "" {
			link = LinkUnavailable
		}
		lines = append(lines, fmt.Sprintf("%d. %s \\ %s \\ %s", i+1, result.Name, link, result.Subscribers))
	}

	filename := fmt.Sprintf("tgstat_results_%s_%s.txt", category, now.Format("20060102-150405"))
	return []byte(strings.Join(lines, "\n")), filename
}

// WriteArtifact persists the encoded artifact into the given directory and
// returns the full path. This is the external sink side of the export;
// Encode itself stays pure.
func WriteArtifact(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", &Error{Filename: filename, Err: err}
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &Error{Filename: filename, Err: err}
	}

	return path, nil
}
