package export

import (
	"os"
	"time"

	"github.com/goccy/go-json"

	"github.com/parquetry/parquetry/pkg/perrors"
)

// ItemResult records the outcome of one work item.
type ItemResult struct {
	Source   string        `json:"source"`
	Output   string        `json:"output"`
	Kind     Kind          `json:"kind"`
	Rows     int64         `json:"rows"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Failed reports whether the item failed.
func (r ItemResult) Failed() bool {
	return r.Error != ""
}

// SourceError records a source that could not be processed at all, such
// as a connection failure before any work item ran.
type SourceError struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

// Report summarizes an entire export run. The process exit status is
// non-zero whenever Failed() > 0.
type Report struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration_ns"`
	Items        []ItemResult  `json:"items"`
	SourceErrors []SourceError `json:"source_errors,omitempty"`
}

// Failed returns the number of failed items plus failed sources.
func (r *Report) Failed() int {
	n := len(r.SourceErrors)
	for _, item := range r.Items {
		if item.Failed() {
			n++
		}
	}
	return n
}

// Succeeded returns the number of items that completed.
func (r *Report) Succeeded() int {
	n := 0
	for _, item := range r.Items {
		if !item.Failed() {
			n++
		}
	}
	return n
}

// TotalRows returns the row count across all successful items.
func (r *Report) TotalRows() int64 {
	var n int64
	for _, item := range r.Items {
		if !item.Failed() {
			n += item.Rows
		}
	}
	return n
}

// WriteJSON writes the report as indented JSON to path.
func (r *Report) WriteJSON(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to marshal report")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return perrors.Wrap(err, perrors.ErrorTypeWrite, "failed to write report")
	}
	return nil
}
