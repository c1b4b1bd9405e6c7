// Package report persists the outcome of the last sync run as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"setupsync/pkg/logger"
	"setupsync/pkg/models"
	"setupsync/pkg/storage"
)

// FileName is the report written into the report directory.
const FileName = "last-run.json"

// Version of the report format.
const Version = 1

// Summary condenses a run into counts a caller can print.
type Summary struct {
	Found      int            `json:"found"`
	Downloaded int            `json:"downloaded"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	ByType     map[string]int `json:"failures_by_type,omitempty"`
}

// Report is the file format.
type Report struct {
	Version int              `json:"version"`
	Summary Summary          `json:"summary"`
	Run     models.RunResult `json:"run"`
}

// Build derives a report from a run.
func Build(result models.RunResult) Report {
	s := Summary{
		Found:      result.Found,
		Downloaded: len(result.Processed),
		Failed:     len(result.Failed),
	}
	for _, f := range result.Failed {
		if f.Skipped {
			s.Skipped++
		}
		if s.ByType == nil {
			s.ByType = map[string]int{}
		}
		s.ByType[f.Type]++
	}
	return Report{Version: Version, Summary: s, Run: result}
}

// Types returns the failure categories of s in name order.
func (s Summary) Types() []string {
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Writer stores reports in one directory.
type Writer struct {
	store  *storage.Manager
	logger logger.Logger
}

// NewWriter creates a Writer for dir on the local filesystem.
func NewWriter(dir string, log logger.Logger) (*Writer, error) {
	return NewWriterWithFS(afero.NewOsFs(), dir, log)
}

// NewWriterWithFS creates a Writer on fs.
func NewWriterWithFS(fs afero.Fs, dir string, log logger.Logger) (*Writer, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	store, err := storage.NewManagerWithFS(fs, dir, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &Writer{store: store, logger: log}, nil
}

// Path is where the report lives.
func (w *Writer) Path() string {
	return filepath.Join(w.store.Root(), FileName)
}

// Write replaces the report with one for result and returns its path.
func (w *Writer) Write(result models.RunResult) (string, error) {
	data, err := json.MarshalIndent(Build(result), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	path := w.Path()
	if err := w.store.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	w.logger.DebugWithFields("Run report written", map[string]interface{}{
		"run_id": result.RunID,
		"path":   path,
	})
	return path, nil
}

// Load reads the last report. It returns nil without error when no run has
// been recorded yet.
func (w *Writer) Load() (*Report, error) {
	data, err := afero.ReadFile(w.store.Fs(), w.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &r, nil
}
