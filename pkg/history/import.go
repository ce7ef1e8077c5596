package history

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ImportOptions contains options for history import operations
type ImportOptions struct {
	// Deduplicate drops every repeat of a command, not only adjacent ones
	Deduplicate bool
	MaxRecords  int
	SkipErrors  bool
}

// ImportResult contains the result of an import operation
type ImportResult struct {
	TotalRecords    int
	ImportedRecords int
	SkippedRecords  int
	Errors          []error
}

// importedLine is one command parsed from another shell's history
type importedLine struct {
	command   string
	timestamp time.Time
}

// ImportBashHistory records the commands of a bash history file. Lines of
// the form "#<unix seconds>" set the timestamp of the command that follows.
func ImportBashHistory(h *TextHistory, r io.Reader, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{Deduplicate: true, SkipErrors: true}
	}

	result := &ImportResult{}
	var pending time.Time

	err := scanHistory(r, func(line string) (*importedLine, error) {
		if strings.HasPrefix(line, "#") {
			if ts, err := strconv.ParseInt(strings.TrimPrefix(line, "#"), 10, 64); err == nil {
				pending = time.Unix(ts, 0).UTC()
			}
			return nil, nil
		}
		result.TotalRecords++
		parsed := &importedLine{command: line, timestamp: pending}
		pending = time.Time{}
		return parsed, nil
	}, h, opts, result)
	if err != nil {
		return result, fmt.Errorf("error reading bash history: %w", err)
	}
	return result, nil
}

// ImportZshHistory records the commands of a zsh extended history file
// (": <start>:<elapsed>;<command>"). Plain lines are taken as commands.
func ImportZshHistory(h *TextHistory, r io.Reader, opts *ImportOptions) (*ImportResult, error) {
	if opts == nil {
		opts = &ImportOptions{Deduplicate: true, SkipErrors: true}
	}

	result := &ImportResult{}
	err := scanHistory(r, func(line string) (*importedLine, error) {
		result.TotalRecords++
		if !strings.HasPrefix(line, ":") {
			return &importedLine{command: line}, nil
		}

		header, command, found := strings.Cut(line, ";")
		if !found {
			return nil, fmt.Errorf("invalid zsh history format: %s", line)
		}
		fields := strings.SplitN(header, ":", 3)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid zsh timestamp format: %s", header)
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp: %w", err)
		}
		return &importedLine{command: command, timestamp: time.Unix(ts, 0).UTC()}, nil
	}, h, opts, result)
	if err != nil {
		return result, fmt.Errorf("error reading zsh history: %w", err)
	}
	return result, nil
}

// scanHistory feeds each parsed command to h as a typed line so the usual
// policy decides what is kept and what reaches the history file
func scanHistory(r io.Reader, parse func(string) (*importedLine, error), h *TextHistory, opts *ImportOptions, result *ImportResult) error {
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parsed, err := parse(line)
		if err != nil {
			if !opts.SkipErrors {
				return err
			}
			result.Errors = append(result.Errors, err)
			result.SkippedRecords++
			continue
		}
		if parsed == nil {
			continue
		}

		if opts.Deduplicate {
			if seen[parsed.command] {
				result.SkippedRecords++
				continue
			}
			seen[parsed.command] = true
		}

		edits := []EditItem{InsertString{Text: parsed.command}}
		added := h.addToHistory(parsed.command, edits, len(edits), false, false)
		if added == nil {
			result.SkippedRecords++
			continue
		}
		if !parsed.timestamp.IsZero() {
			added.StartTime = parsed.timestamp
		}
		result.ImportedRecords++

		if opts.MaxRecords > 0 && result.ImportedRecords >= opts.MaxRecords {
			break
		}
	}
	return scanner.Err()
}

// DetectHistoryFile attempts to detect and return the path to the shell history file
func DetectHistoryFile(shell string) (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	var candidates []string
	switch strings.ToLower(shell) {
	case "bash":
		candidates = []string{
			filepath.Join(homeDir, ".bash_history"),
			filepath.Join(homeDir, ".bashrc_history"),
		}
	case "zsh":
		candidates = []string{
			filepath.Join(homeDir, ".zsh_history"),
			filepath.Join(homeDir, ".zhistory"),
		}
	default:
		return "", fmt.Errorf("unsupported shell: %s (supported: bash, zsh)", shell)
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s history file not found", strings.ToLower(shell))
}
