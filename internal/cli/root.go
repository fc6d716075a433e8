// Package cli implements the shotdiff command line.
package cli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/shotdiff/internal/config"
	apperrors "github.com/GriffinCanCode/shotdiff/internal/errors"
	"github.com/GriffinCanCode/shotdiff/internal/runner"
	"github.com/GriffinCanCode/shotdiff/internal/visual"
)

// app carries resolved configuration from the root command to subcommands.
type app struct {
	configPath string
	flags      config.Config
	cfg        *config.Config
	log        *slog.Logger
	logOut     io.Writer
	logFile    *os.File
}

// NewRootCmd builds the shotdiff command tree. Logs go to stderr.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Stderr)
}

func newRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}

	cmd := &cobra.Command{
		Use:   "shotdiff",
		Short: "Perceptual screenshot regression testing",
		Long: `shotdiff compares freshly captured screenshots against approved baselines
using an 8x8 average hash. Screenshots whose fingerprints differ by fewer bits
than the threshold pass; everything else is reported as a visual regression.

Run with --update-snapshots to create missing baselines and accept new ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return a.resolve(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.closeLogFile()
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&a.flags.BaselineDir, "baseline-dir", "", "directory of approved baselines")
	pf.StringVar(&a.flags.ActualDir, "actual-dir", "", "directory of fresh captures")
	pf.IntVarP(&a.flags.Threshold, "threshold", "t", 0, "Hamming distance at which screenshots count as different")
	pf.BoolVarP(&a.flags.UpdateMode, "update-snapshots", "u", false, "create or overwrite baselines from captures")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "text or json")
	pf.StringVar(&a.flags.LogFile, "log-file", "", "also append logs to this file")

	cmd.AddCommand(newCompareCmd(a))
	cmd.AddCommand(newHashCmd(a))
	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newServeCmd(a))

	return cmd
}

// resolve layers env, config file and explicitly set flags, in that order.
func (a *app) resolve(cmd *cobra.Command) error {
	cfg := config.Load()
	if a.configPath != "" {
		if err := config.LoadFile(cfg, a.configPath); err != nil {
			return usageError(err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("baseline-dir") {
		cfg.BaselineDir = a.flags.BaselineDir
	}
	if flags.Changed("actual-dir") {
		cfg.ActualDir = a.flags.ActualDir
	}
	if flags.Changed("threshold") {
		cfg.Threshold = a.flags.Threshold
	}
	if flags.Changed("update-snapshots") {
		cfg.UpdateMode = a.flags.UpdateMode
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.flags.LogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.flags.LogFormat
	}
	if flags.Changed("log-file") {
		cfg.LogFile = a.flags.LogFile
	}

	if err := cfg.Validate(); err != nil {
		return usageError(err)
	}
	a.cfg = cfg

	out := a.logOut
	if cfg.LogFile != "" {
		f, err := openLogFile(cfg.LogFile)
		if err != nil {
			return usageError(err)
		}
		a.logFile = f
		out = io.MultiWriter(a.logOut, f)
	}
	a.log = newLogger(cfg.LogLevel, cfg.LogFormat, out)
	slog.SetDefault(a.log)
	a.log.Debug("configuration resolved", "config", cfg.String())
	return nil
}

func (a *app) comparer() *visual.Comparer {
	return visual.NewComparer(visual.Options{
		Layout:     visual.Layout{BaselineDir: a.cfg.BaselineDir, ActualDir: a.cfg.ActualDir},
		Threshold:  a.cfg.Threshold,
		UpdateMode: a.cfg.UpdateMode,
	}, visual.WithLogger(a.log))
}

func (a *app) runner(opts runner.Options) *runner.Runner {
	opts.Comparer = a.comparer()
	opts.Concurrency = a.cfg.Concurrency
	opts.Logger = a.log
	return runner.New(opts)
}

// openLogFile opens path for appending, creating its directory.
func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFilesystem, "create log directory").
			WithMetadata("path", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFilesystem, "open log file").
			WithMetadata("path", path)
	}
	return f, nil
}

func (a *app) closeLogFile() error {
	if a.logFile == nil {
		return nil
	}
	err := a.logFile.Close()
	a.logFile = nil
	return err
}

// newLogger builds a slog logger writing to w in the requested format.
func newLogger(level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
