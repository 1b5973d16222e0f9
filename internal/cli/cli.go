package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pfrederiksen/callsign-mirror/internal/artifact"
	"github.com/pfrederiksen/callsign-mirror/internal/config"
	"github.com/pfrederiksen/callsign-mirror/internal/discovery"
	"github.com/pfrederiksen/callsign-mirror/internal/fetch"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
	"github.com/pfrederiksen/callsign-mirror/internal/metadata"
	"github.com/pfrederiksen/callsign-mirror/internal/pipeline"
	"github.com/spf13/cobra"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

type options struct {
	dataDir   string
	sourceURL string
	origin    string
	policy    string
	timeout   time.Duration
	format    string
	verbose   bool

	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(&options{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv})
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callsign-mirror",
		Short: "Mirror the Ofcom amateur radio callsign dataset",
		Long: `Discovers the amateur radio callsign CSV published on Ofcom's open-data page,
downloads it, and derives sorted CSV and JSON copies plus metadata with content
digests. Processing is skipped when the raw file has not changed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaults := config.Default()
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", defaults.DataDir, "Working directory for downloaded and derived files")
	flags.StringVar(&opts.sourceURL, "source-url", defaults.SourceURL, "Open-data page to scan for the dataset link")
	flags.StringVar(&opts.origin, "origin", "", "Origin for relative links (default: scheme and host of --source-url)")
	flags.StringVar(&opts.policy, "policy", defaults.Policy, "Link selection policy: strict or best-effort")
	flags.DurationVar(&opts.timeout, "timeout", defaults.Timeout, "Timeout for each HTTP request")
	flags.StringVar(&opts.format, "format", string(FormatText), "Output format: text or json")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging (or env: CALLSIGN_MIRROR_DEBUG)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "discover",
			Short: "Find the dataset link and download the raw CSV",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, true, false)
			},
		},
		&cobra.Command{
			Use:   "process",
			Short: "Derive sorted CSV, JSON and metadata from the raw CSV",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, false, true)
			},
		},
		&cobra.Command{
			Use:   "run",
			Short: "Discover then process",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return opts.run(cmd, true, true)
			},
		},
	)

	return cmd
}

// resolveConfig layers defaults, environment, then explicitly set flags
func (o *options) resolveConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default().FromEnv(o.getenv)

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = o.dataDir
	}
	if flags.Changed("source-url") {
		cfg.SourceURL = o.sourceURL
	}
	if flags.Changed("origin") {
		cfg.Origin = o.origin
	}
	if flags.Changed("policy") {
		cfg.Policy = strings.ToLower(o.policy)
	}
	if flags.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if o.verbose {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func (o *options) run(cmd *cobra.Command, discover, process bool) error {
	format := OutputFormat(strings.ToLower(o.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", o.format)
	}

	cfg, err := o.resolveConfig(cmd)
	if err != nil {
		return err
	}

	level := logger.LevelInfo
	if cfg.Debug {
		level = logger.LevelDebug
	}
	result := &OutputResult{RunID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := logger.New(level, o.stderr).WithFields(logger.Fields{"run_id": result.RunID})
	logger.SetDefault(log)
	metrics := logger.NewMetrics()

	defer func() {
		log.Debug("Run metrics", metrics.Snapshot())
	}()

	log.Debug("Configuration", logger.Fields{
		"data_dir":   cfg.DataDir,
		"source_url": cfg.SourceURL,
		"policy":     cfg.Policy,
		"timeout":    cfg.Timeout.String(),
	})

	layout, err := artifact.NewLayout(cfg.DataDir)
	if err != nil {
		return err
	}
	store, err := metadata.NewStore(layout)
	if err != nil {
		return err
	}

	if discover {
		policy, err := discovery.ParsePolicy(cfg.Policy)
		if err != nil {
			return err
		}
		origin, err := cfg.BaseOrigin()
		if err != nil {
			return err
		}

		d := &pipeline.Discoverer{
			Client:  fetch.New(cfg.Timeout),
			Layout:  layout,
			Store:   store,
			Matcher: discovery.DefaultMatcher(),
			Policy:  policy,
			PageURL: cfg.SourceURL,
			Origin:  origin,
			Log:     log,
			Metrics: metrics,
		}
		result.Discover, err = d.Run(cmd.Context())
		if err != nil {
			log.Error("Discovery failed", logger.Fields{"source_url": cfg.SourceURL}, err)
			return err
		}
	}

	if process {
		p := &pipeline.Processor{
			Layout:  layout,
			Store:   store,
			Log:     log,
			Metrics: metrics,
		}
		result.Process, err = p.Run()
		if err != nil {
			log.Error("Processing failed", logger.Fields{"data_dir": layout.Dir}, err)
			return err
		}
	}

	if err := WriteOutput(o.stdout, result, format, cfg.Debug); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// Execute runs the CLI and returns the process exit code
func Execute() int {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Error("Run failed", nil, err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}
