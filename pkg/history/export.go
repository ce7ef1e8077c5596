package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportFormat represents the export format type
type ExportFormat string

const (
	// FormatPlain writes entries in the history file encoding
	FormatPlain ExportFormat = "plain"
	FormatJSON  ExportFormat = "json"
)

// ExportResult contains the result of an export operation
type ExportResult struct {
	ExportedRecords int
	SkippedRecords  int
	Format          ExportFormat
	BytesWritten    int64
	ExportedAt      time.Time
}

// JSONExportRecord represents one history item in JSON export format
type JSONExportRecord struct {
	Command          string     `json:"command"`
	StartTime        *time.Time `json:"start_time,omitempty"`
	Saved            bool       `json:"saved"`
	FromOtherSession bool       `json:"from_other_session"`
	FromHistoryFile  bool       `json:"from_history_file"`
}

// ParseExportFormat validates a format name
func ParseExportFormat(s string) (ExportFormat, error) {
	switch ExportFormat(s) {
	case FormatPlain, FormatJSON:
		return ExportFormat(s), nil
	}
	return "", fmt.Errorf("unsupported export format: %s", s)
}

// Export writes the in-memory history of state to w. Sensitive items are
// never exported.
func Export(w io.Writer, state *State, format ExportFormat) (*ExportResult, error) {
	counter := &countingWriter{w: w}
	result := &ExportResult{Format: format}

	var err error
	switch format {
	case FormatPlain:
		err = exportPlain(counter, state, result)
	case FormatJSON:
		err = exportJSON(counter, state, result)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	result.BytesWritten = counter.n
	result.ExportedAt = time.Now()
	return result, nil
}

func exportPlain(w io.Writer, state *State, result *ExportResult) error {
	bw := bufio.NewWriter(w)
	for _, item := range state.Items() {
		if item.Sensitive {
			result.SkippedRecords++
			continue
		}
		if _, err := fmt.Fprintln(bw, encodeEntry(item.CommandLine)); err != nil {
			return fmt.Errorf("failed to write entry: %w", err)
		}
		result.ExportedRecords++
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	return nil
}

func exportJSON(w io.Writer, state *State, result *ExportResult) error {
	records := make([]JSONExportRecord, 0, state.History.Count())
	for _, item := range state.Items() {
		if item.Sensitive {
			result.SkippedRecords++
			continue
		}
		record := JSONExportRecord{
			Command:          item.CommandLine,
			Saved:            item.Saved,
			FromOtherSession: item.FromOtherSession,
			FromHistoryFile:  item.FromHistoryFile,
		}
		if !item.StartTime.IsZero() {
			startTime := item.StartTime
			record.StartTime = &startTime
		}
		records = append(records, record)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(records); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	result.ExportedRecords = len(records)
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
