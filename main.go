package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"imdirdiff/config"
	"imdirdiff/differ"
	"imdirdiff/logging"
	"imdirdiff/signalhandler"
)

func main() {
	stop := signalhandler.SetupHandler(logging.CloseLogger)
	defer stop()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logging.LogError("run failed", "error", err.Error())
		logging.CloseLogger()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.CloseLogger()
}

type rootFlags struct {
	configPath    string
	flip          bool
	flipBin       string
	output        string
	thumbHeight   int
	workers       int
	skipUnchanged bool
	copyUnmatched bool
	debug         bool
	logFile       string
	noColor       bool
	db            string
	metricsFile   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "imdirdiff [flags] <dir-a> <dir-b>",
		Short: "Compare two directories of images and write an HTML report",
		Long: `imdirdiff finds images present on only one side of two directory trees,
compares the images present on both, and writes a browsable report with
copies, diff heat maps and thumbnails.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}

			if flags.noColor {
				color.NoColor = true //nolint:reassign // library switch
			}

			if cfg.Logging.Debug {
				err := logging.SetupLogger(logging.Options{Path: cfg.Logging.File, JSON: cfg.Logging.JSON})
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Failed to setup logging: %v\n", err)
				}
			}

			_, err = differ.Run(cmd.Context(), differ.Options{
				DirA:    args[0],
				DirB:    args[1],
				Config:  cfg,
				Out:     cmd.OutOrStdout(),
				NoColor: flags.noColor,
			})
			return err
		},
	}

	cmd.SetOut(out)
	addRootFlags(cmd, flags)

	cmd.AddCommand(newHistoryCmd())

	return cmd
}

func addRootFlags(cmd *cobra.Command, flags *rootFlags) {
	f := cmd.Flags()
	f.StringVar(&flags.configPath, "config", "", "Configuration file (default: imdirdiff.yaml in . or ~/.config/imdirdiff)")
	f.BoolVar(&flags.flip, "flip", false, "Compare with the external flip tool instead of the built-in metric")
	f.StringVar(&flags.flipBin, "flip-bin", config.DefaultFlipBinary, "flip executable name or path")
	f.StringVarP(&flags.output, "output", "o", config.DefaultReportRoot, "Report directory")
	f.IntVar(&flags.thumbHeight, "thumb-height", config.DefaultThumbHeight, "Thumbnail height in pixels")
	f.IntVar(&flags.workers, "workers", 1, "Parallel comparisons (0 picks a value for this machine)")
	f.BoolVar(&flags.skipUnchanged, "skip-unchanged", false, "Do not write artifacts for identical images")
	f.BoolVar(&flags.copyUnmatched, "copy-unmatched", false, "Copy images present on one side only into the report")
	f.BoolVar(&flags.debug, "debug", false, "Write a debug log")
	f.StringVar(&flags.logFile, "logfile", config.DefaultLogFile, "Debug log location")
	f.BoolVar(&flags.noColor, "no-color", false, "Disable colored output")
	f.StringVar(&flags.db, "db", "", "Record the run in this SQLite database")
	f.StringVar(&flags.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
}

// loadConfig reads the configuration and applies the flags the user set
func loadConfig(cmd *cobra.Command, flags *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("flip") {
		cfg.Compare.Backend = config.BackendPixel
		if flags.flip {
			cfg.Compare.Backend = config.BackendFlip
		}
	}
	if f.Changed("flip-bin") {
		cfg.Compare.Flip.Executable = flags.flipBin
	}
	if f.Changed("output") {
		cfg.Report.Root = flags.output
	}
	if f.Changed("thumb-height") {
		cfg.Report.ThumbHeight = flags.thumbHeight
	}
	if f.Changed("workers") {
		cfg.Compare.Workers = flags.workers
	}
	if f.Changed("skip-unchanged") {
		cfg.Report.SkipUnchanged = flags.skipUnchanged
	}
	if f.Changed("copy-unmatched") {
		cfg.Report.CopyUnmatched = flags.copyUnmatched
	}
	if f.Changed("debug") {
		cfg.Logging.Debug = flags.debug
	}
	if f.Changed("logfile") {
		cfg.Logging.File = flags.logFile
	}
	if f.Changed("db") {
		cfg.History.Database = flags.db
	}
	if f.Changed("metrics-file") {
		cfg.Metrics.Textfile = flags.metricsFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
