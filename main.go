package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/NeverVane/shellhistory/internal/config"
	"github.com/NeverVane/shellhistory/internal/logger"
	"github.com/NeverVane/shellhistory/internal/output"
	"github.com/NeverVane/shellhistory/internal/sentry"
	"github.com/NeverVane/shellhistory/pkg/history"
)

var (
	version = "0.1.0"
	commit  = "dev"
	date    = "2026-10-14"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			if sentry.IsEnabled() {
				sentry.CaptureError(fmt.Errorf("panic: %v", r), "main", "panic_recovery")
				sentry.Flush(2 * time.Second)
			}
			fmt.Fprintf(os.Stderr, "shist encountered a fatal error: %v\n", r)
			os.Exit(1)
		}
	}()

	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "shist",
		Short: "Shared shell history log",
		Long: `shist records accepted shell input lines into a bounded in-memory history
and keeps it in sync with a history file shared by every running shell.

Lines that look sensitive (passwords, tokens, secrets) are kept in memory
only and never written to disk. Multi-line entries are stored with a
trailing backtick on every line but the last.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.teardown()
		},
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default: ~/.config/shellhistory/config.toml)")
	rootCmd.PersistentFlags().String("history-path", "", "History file to use instead of the configured one")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(recordCmd(a))
	rootCmd.AddCommand(listCmd(a))
	rootCmd.AddCommand(replCmd(a))
	rootCmd.AddCommand(rewriteCmd(a))
	rootCmd.AddCommand(exportCmd(a))
	rootCmd.AddCommand(importCmd(a))
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		if a.errOut != nil {
			fmt.Fprintln(os.Stderr, a.errOut.Error(err.Error()))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed
type app struct {
	cfg *config.Config

	// out styles text written to stdout, errOut text written to stderr.
	// Each follows the color support of its own stream.
	out    *output.Formatter
	errOut *output.Formatter

	text  *history.TextHistory
	proxy *history.Proxy
}

func (a *app) setup(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// SHIST_DATA_DIR relocates the history file, for containers, CI and tests
	if dataDir := os.Getenv("SHIST_DATA_DIR"); dataDir != "" {
		if !filepath.IsAbs(dataDir) {
			return fmt.Errorf("SHIST_DATA_DIR must be an absolute path, got: %s", dataDir)
		}
		cfg.SetDataDir(filepath.Clean(dataDir))
	}
	if historyPath, _ := cmd.Flags().GetString("history-path"); historyPath != "" {
		cfg.History.SavePath = historyPath
	}

	loggerConfig := cfg.Logging
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		loggerConfig.Level = "debug"
	}
	if err := logger.Init(&loggerConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := sentry.Initialize(cfg, version); err != nil {
		// Monitoring is optional
		fmt.Fprintf(os.Stderr, "Warning: Failed to initialize error monitoring: %v\n", err)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	a.out, a.errOut = newFormatters(&cfg.Output, os.Stdout, os.Stderr, noColor)
	a.cfg = cfg

	opts := history.OptionsFromConfig(cfg)
	state := history.NewState(opts, nil)
	reporter := history.NewReporter(os.Stderr, opts.SavePath, a.errOut.ErrorStyle())
	a.text = history.NewTextHistory(state, reporter)
	a.proxy = history.NewProxy(a.text)
	return nil
}

func newFormatters(cfg *config.OutputConfig, stdout, stderr *os.File, noColor bool) (*output.Formatter, *output.Formatter) {
	out := output.NewFormatter(cfg, stdout)
	out.SetNoColor(noColor)
	errOut := output.NewFormatter(cfg, stderr)
	errOut.SetNoColor(noColor)
	return out, errOut
}

func (a *app) teardown() {
	if a.text != nil {
		a.text.Close()
	}
	if sentry.IsEnabled() {
		sentry.Flush(2 * time.Second)
		sentry.Close()
	}
}

// recordCmd records lines given as arguments
func recordCmd(a *app) *cobra.Command {
	var fromOther bool

	cmd := &cobra.Command{
		Use:   "record <line>...",
		Short: "Record lines into the shared history",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("record")

			a.text.Load()
			before := a.text.State().History.Count()
			for _, line := range args {
				edits := []history.EditItem{history.InsertString{Text: line}}
				a.proxy.AddToHistory(line, edits, len(edits), fromOther, false)
			}

			log.Debug().
				Int("args", len(args)).
				Int("recorded", a.text.State().History.Count()-before).
				Msg("Lines recorded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&fromOther, "from-other-session", false, "Record as if replayed from another session")
	return cmd
}

// listCmd prints the history as this session sees it
func listCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded history",
		RunE: func(cmd *cobra.Command, args []string) error {
			a.text.Load()
			items := a.text.State().Items()
			if limit > 0 && len(items) > limit {
				items = items[len(items)-limit:]
			}
			for i, item := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%5d  %s%s\n", i+1, item.CommandLine, a.provenance(item))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last n entries")
	return cmd
}

func (a *app) provenance(item *history.Item) string {
	var tags []string
	if item.FromOtherSession {
		tags = append(tags, "other")
	}
	if item.Sensitive {
		tags = append(tags, "memory-only")
	}
	if !item.Saved {
		tags = append(tags, "unsaved")
	}
	if len(tags) == 0 {
		return ""
	}
	return "  " + a.out.Dim("["+strings.Join(tags, ",")+"]")
}

// replCmd accepts lines from stdin the way a shell would
func replCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read lines from stdin and record each one",
		Long: `Read lines from stdin and record each one, as an interactive shell does.

  :history   print the session history
  :sync      merge lines other processes appended
  :clear     forget the session history (the file is kept)
  :quit      exit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.text.Load()
			out := cmd.OutOrStdout()

			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				line := scanner.Text()
				switch strings.TrimSpace(line) {
				case ":quit":
					return nil
				case ":sync":
					before := a.text.State().History.Count()
					a.text.Sync()
					fmt.Fprintf(out, "%d new entries\n", a.text.State().History.Count()-before)
				case ":clear":
					a.text.State().Clear()
				case ":history":
					for i, item := range a.text.State().Items() {
						fmt.Fprintf(out, "%5d  %s%s\n", i+1, item.CommandLine, a.provenance(item))
					}
				default:
					edits := []history.EditItem{history.InsertString{Text: line}}
					a.proxy.AddToHistory(line, edits, len(edits), false, false)
				}
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		},
	}
}

// rewriteCmd compacts the history file to what this session holds
func rewriteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite",
		Short: "Rewrite the history file from the loaded history",
		Long: `Load the history file and write it back in full. Entries beyond the
configured max_count and adjacent duplicates are dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.text.Load() {
				return fmt.Errorf("could not load history file %s", a.cfg.GetSavePath())
			}
			if !a.text.Rewrite() {
				return fmt.Errorf("could not rewrite history file %s", a.cfg.GetSavePath())
			}
			fmt.Fprintln(cmd.OutOrStdout(), a.out.Success(fmt.Sprintf("Rewrote %d entries", a.text.State().History.Count())))
			return nil
		},
	}
}

// exportCmd writes the loaded history to stdout or a file
func exportCmd(a *app) *cobra.Command {
	var format, outputPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export history as plain text or JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := history.ParseExportFormat(format)
			if err != nil {
				return err
			}

			a.text.Load()

			w := cmd.OutOrStdout()
			if outputPath != "" {
				file, err := os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer file.Close()
				w = file
			}

			result, err := history.Export(w, a.text.State(), exportFormat)
			if err != nil {
				return err
			}
			if outputPath != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), a.errOut.Success(
					fmt.Sprintf("Exported %d entries (%d bytes) to %s", result.ExportedRecords, result.BytesWritten, outputPath)))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(history.FormatPlain), "Export format (plain, json)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// importCmd records the history of another shell into the shared history
func importCmd(a *app) *cobra.Command {
	var shell string
	var maxRecords int
	var keepDuplicates, strict bool

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import bash or zsh history",
		Long: `Import commands from a bash or zsh history file. Without a file argument
the shell's usual history file is used. Imported lines go through the same
filters as typed ones, so sensitive commands are kept in memory only.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				detected, err := history.DetectHistoryFile(shell)
				if err != nil {
					return err
				}
				path = detected
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open %s history file: %w", shell, err)
			}
			defer file.Close()

			a.text.Load()

			opts := &history.ImportOptions{
				Deduplicate: !keepDuplicates,
				MaxRecords:  maxRecords,
				SkipErrors:  !strict,
			}

			var result *history.ImportResult
			switch strings.ToLower(shell) {
			case "bash":
				result, err = history.ImportBashHistory(a.text, file, opts)
			case "zsh":
				result, err = history.ImportZshHistory(a.text, file, opts)
			default:
				return fmt.Errorf("unsupported shell: %s (supported: bash, zsh)", shell)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), a.out.Success(
				fmt.Sprintf("Imported %d of %d entries from %s (%d skipped)",
					result.ImportedRecords, result.TotalRecords, path, result.SkippedRecords)))
			for _, e := range result.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), a.errOut.Dim(e.Error()))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&shell, "shell", "s", "bash", "History format (bash, zsh)")
	cmd.Flags().IntVar(&maxRecords, "max", 0, "Import at most this many entries")
	cmd.Flags().BoolVar(&keepDuplicates, "keep-duplicates", false, "Keep repeated commands")
	cmd.Flags().BoolVar(&strict, "strict", false, "Stop at the first malformed line")
	return cmd
}

// configCmd manages the configuration file
func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	// The config file may not exist yet, so none of the usual setup runs
	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error { return nil }
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		Long: `Write the default configuration to the --config path, or to
~/.config/shellhistory/config.toml when none is given. An existing file is
only replaced with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			path, err := writeDefaultConfig(configPath, force)
			if err != nil {
				return err
			}

			noColor, _ := cmd.Flags().GetBool("no-color")
			out, _ := newFormatters(&config.DefaultConfig().Output, os.Stdout, os.Stderr, noColor)
			fmt.Fprintln(cmd.OutOrStdout(), out.Success("Wrote default configuration to "+path))
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Replace an existing configuration file")

	cmd.AddCommand(initCmd)
	return cmd
}

// writeDefaultConfig saves the default configuration to path, or to the
// default location when path is empty, and returns where it was written
func writeDefaultConfig(path string, force bool) (string, error) {
	cfg := config.DefaultConfig()
	if path == "" {
		path = filepath.Join(cfg.ConfigDir, "config.toml")
	}

	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("config file %s already exists (use --force to replace it)", path)
	}
	if err := cfg.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

func versionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "shist %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}

	// No config or history is needed to print the version
	cmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {}
	cmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {}
	return cmd
}
