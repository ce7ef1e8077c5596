package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/NeverVane/shellhistory/internal/config"
)

// Formatter styles CLI and error-report output based on configuration
type Formatter struct {
	config  *config.OutputConfig
	enabled bool
	isTTY   bool

	errorStyle   lipgloss.Style
	successStyle lipgloss.Style
	dimStyle     lipgloss.Style
}

// NewFormatter creates a formatter for output written to f
func NewFormatter(cfg *config.OutputConfig, f *os.File) *Formatter {
	formatter := &Formatter{
		config: cfg,
		isTTY:  f != nil && term.IsTerminal(int(f.Fd())),
	}
	formatter.SetNoColor(false)
	return formatter
}

// SetNoColor disables color output (for --no-color flag)
func (f *Formatter) SetNoColor(noColor bool) {
	f.enabled = f.config.ColorsEnabled && !noColor && (!f.config.AutoDetectTTY || f.isTTY)

	// NO_COLOR environment variable (follows standard)
	if os.Getenv("NO_COLOR") != "" {
		f.enabled = false
	}

	f.errorStyle = lipgloss.NewStyle()
	f.successStyle = lipgloss.NewStyle()
	f.dimStyle = lipgloss.NewStyle()
	if f.enabled {
		f.errorStyle = f.errorStyle.Foreground(lipgloss.Color(f.config.ErrorColor))
		f.successStyle = f.successStyle.Foreground(lipgloss.Color("#00FF00"))
		f.dimStyle = f.dimStyle.Faint(true)
	}
}

// IsEnabled returns whether colors are currently enabled
func (f *Formatter) IsEnabled() bool {
	return f.enabled
}

// ErrorStyle returns the style used for error text
func (f *Formatter) ErrorStyle() lipgloss.Style {
	return f.errorStyle
}

func (f *Formatter) Error(message string) string {
	return f.errorStyle.Render("[FAIL]") + " " + message
}

func (f *Formatter) Success(message string) string {
	return f.successStyle.Render("[OK]") + " " + message
}

// Dim renders secondary information such as provenance markers
func (f *Formatter) Dim(text string) string {
	return f.dimStyle.Render(text)
}
