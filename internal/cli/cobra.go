// Package cli wires the seedcell commands onto cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ironsheep/seed-cell-size/internal/config"
	"github.com/ironsheep/seed-cell-size/internal/httpapi"
	"github.com/ironsheep/seed-cell-size/internal/imaging"
	"github.com/ironsheep/seed-cell-size/internal/logging"
	"github.com/ironsheep/seed-cell-size/internal/pipeline"
	"github.com/ironsheep/seed-cell-size/internal/results"
	"github.com/ironsheep/seed-cell-size/internal/segmentation"
	"github.com/ironsheep/seed-cell-size/internal/server"
)

// BuildInfo is set by ldflags in cmd/seedcell.
type BuildInfo struct {
	Version   string
	BuildTime string
	GitCommit string
}

// Root holds what every command shares.
type Root struct {
	info       BuildInfo
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	configPath string
}

// NewRootCmd creates the root Cobra command
func NewRootCmd(info BuildInfo, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &Root{info: info, stdin: stdin, stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:   "seedcell",
		Short: "Seedcell measures the cells of a seed tissue micrograph",
		Long: `Seedcell segments a 2-D micrograph of seed tissue into individual cells,
drops cells touching the border or smaller than the area threshold, and writes
one shape record per remaining cell together with QA images.`,
		SilenceUsage: true,
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVarP(&root.configPath, "config", "c", "", "YAML configuration file (defaults apply when absent)")

	rootCmd.AddCommand(newAnalyseCmd(root))
	rootCmd.AddCommand(newMeasureCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newHTTPCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

// Execute runs the process command line with SIGINT and SIGTERM cancelling
// the context.
func Execute(info BuildInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCmd(info, os.Stdin, os.Stdout, os.Stderr).ExecuteContext(ctx)
}

func (r *Root) loadConfig() (*config.Config, error) {
	return config.LoadConfig(r.configPath)
}

// consoleLogger logs to stderr at the configured level without an audit file.
func (r *Root) consoleLogger(cfg *config.Config) *slog.Logger {
	return logging.New(r.stderr, cfg.Logging.Level, cfg.Logging.Format)
}

// paramFlags binds one flag per pipeline parameter. Only flags given on the
// command line override the configuration.
type paramFlags struct {
	blockSize       int
	thresholdMethod string
	thresholdOffset float64
	minObjectSize   int
	clearBorder     bool
	areaThreshold   int
	connectivity    int
}

func (f *paramFlags) register(fs *pflag.FlagSet) {
	d := pipeline.DefaultParams()
	fs.IntVar(&f.blockSize, "block-size", d.BlockSize, "adaptive threshold neighbourhood in pixels (odd)")
	fs.StringVar(&f.thresholdMethod, "threshold-method", string(d.ThresholdMethod), "local threshold weighting (gaussian|mean)")
	fs.Float64Var(&f.thresholdOffset, "threshold-offset", d.ThresholdOffset, "value subtracted from the local mean")
	fs.IntVar(&f.minObjectSize, "min-object-size", d.MinObjectSize, "remove specks and holes smaller than this many pixels")
	fs.BoolVar(&f.clearBorder, "clear-border", d.ClearBorder, "drop cells touching the image edge")
	fs.IntVar(&f.areaThreshold, "area-threshold", d.AreaThreshold, "drop cells with fewer pixels than this")
	fs.IntVar(&f.connectivity, "connectivity", int(d.Connectivity), "pixel adjacency (4|8)")
}

func (f *paramFlags) apply(fs *pflag.FlagSet, p pipeline.Params) pipeline.Params {
	if fs.Changed("block-size") {
		p.BlockSize = f.blockSize
	}
	if fs.Changed("threshold-method") {
		p.ThresholdMethod = imaging.ThresholdMethod(f.thresholdMethod)
	}
	if fs.Changed("threshold-offset") {
		p.ThresholdOffset = f.thresholdOffset
	}
	if fs.Changed("min-object-size") {
		p.MinObjectSize = f.minObjectSize
	}
	if fs.Changed("clear-border") {
		p.ClearBorder = f.clearBorder
	}
	if fs.Changed("area-threshold") {
		p.AreaThreshold = f.areaThreshold
	}
	if fs.Changed("connectivity") {
		p.Connectivity = segmentation.Connectivity(f.connectivity)
	}
	return p
}

func newAnalyseCmd(root *Root) *cobra.Command {
	var (
		input       string
		outputDir   string
		debug       bool
		format      string
		failOnEmpty bool
		params      paramFlags
	)

	cmd := &cobra.Command{
		Use:   "analyse -i <input_file> -o <output_directory>",
		Short: "Segment a micrograph and write results.csv plus QA images",
		Long: `Run threshold, small-feature suppression, labelling, border clearing, area
pruning and measurement on one micrograph. The output directory must exist; it
receives original, false_color, segmentation and labels images, results.csv
and audit.log.

Examples:
  seedcell analyse -i seed_01.tif -o out/
  seedcell analyse -i seed_01.tif -o out/ --debug --area-threshold 500`,
		Aliases: []string{"analyze"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			if info, err := os.Stat(outputDir); err != nil || !info.IsDir() {
				return fmt.Errorf("not a directory: %s", outputDir)
			}

			flags := cmd.Flags()
			if flags.Changed("debug") && debug {
				cfg.Logging.Level = "debug"
			}

			logger, closeLog, err := logging.Setup(cfg.LoggingOptions(), root.stderr, outputDir)
			if err != nil {
				return err
			}
			defer closeLog()
			logger.Info("seedcell", "version", root.info.Version, "commit", root.info.GitCommit)

			opts := cfg.AnalyseOptions()
			if flags.Changed("debug") {
				opts.Debug = debug
			}
			if flags.Changed("format") {
				opts.Format = format
			}
			if flags.Changed("fail-on-empty") {
				opts.FailOnEmpty = failOnEmpty
			}
			p := params.apply(flags, cfg.Params())

			summary, err := pipeline.Analyse(cmd.Context(), imaging.NewImageCache(), input, outputDir, p, opts, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(root.stdout, "%d of %d cells kept, results in %s\n", summary.Regions, summary.Labelled, summary.OutputDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input-file", "i", "", "input micrograph")
	cmd.Flags().StringVarP(&outputDir, "output-directory", "o", "", "existing output directory")
	cmd.Flags().BoolVar(&debug, "debug", false, "write out intermediate images and log at debug level")
	cmd.Flags().StringVar(&format, "format", "png", "artefact image format (png|tiff)")
	cmd.Flags().BoolVar(&failOnEmpty, "fail-on-empty", false, "exit with an error when no cell survives filtering")
	params.register(cmd.Flags())
	cmd.MarkFlagRequired("input-file")
	cmd.MarkFlagRequired("output-directory")

	return cmd
}

func newMeasureCmd(root *Root) *cobra.Command {
	var params paramFlags

	cmd := &cobra.Command{
		Use:   "measure <input_file>",
		Short: "Print the shape records of a micrograph as CSV",
		Long: `Run the pipeline on one micrograph and write results.csv to stdout without
touching the filesystem. Handy for piping into other tools.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := root.consoleLogger(cfg)

			p := params.apply(cmd.Flags(), cfg.Params())
			res, err := pipeline.RunFile(imaging.NewImageCache(), args[0], p)
			if err != nil {
				return err
			}
			if res.Empty() {
				logger.Warn("no regions survived filtering", "input", args[0])
			}
			_, err = results.Write(root.stdout, res.Records)
			return err
		},
	}
	params.register(cmd.Flags())
	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdin/stdout",
		Long: `Serve the seedcell tools over the Model Context Protocol. Requests are read
from stdin one per line and responses written to stdout; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger := root.consoleLogger(cfg)
			logger.Debug("MCP server starting", "version", root.info.Version, "built", root.info.BuildTime, "commit", root.info.GitCommit)

			srv := server.New(cfg, logger, root.info.Version)
			return srv.Serve(root.stdin, root.stdout)
		},
	}
}

func newHTTPCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "http",
		Short: "Start the HTTP measurement API",
		Long: `Start an HTTP server answering POST /v1/measure with the shape records of the
uploaded micrograph.

Examples:
  seedcell http --addr :8080
  curl --data-binary @seed_01.tif 'localhost:8080/v1/measure?format=csv'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTP.Addr = addr
			}
			return httpapi.NewServer(cfg, root.consoleLogger(cfg)).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultConfig().HTTP.Addr, "listen address")
	return cmd
}

func newConfigCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration settings",
	}

	initCmd := &cobra.Command{
		Use:   "init <path>",
		Short: "Write a configuration file with the default values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil {
				return fmt.Errorf("%s already exists", args[0])
			} else if !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.CreateDefaultConfigFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(root.stdout, "wrote %s\n", args[0])
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective pipeline parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(root.stdout, "Pipeline: %s\n", cfg.Params())
			fmt.Fprintf(root.stdout, "Output Format: %s\n", cfg.Output.Format)
			fmt.Fprintf(root.stdout, "Log Level: %s\n", cfg.Logging.Level)
			fmt.Fprintf(root.stdout, "HTTP Addr: %s\n", cfg.HTTP.Addr)
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(root.stdout, "seedcell %s\n", root.info.Version)
			fmt.Fprintf(root.stdout, "  Build time: %s\n", root.info.BuildTime)
			fmt.Fprintf(root.stdout, "  Git commit: %s\n", root.info.GitCommit)
		},
	}
}
