// Package cli implements the agriai command line tool.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/agriai/agriai/internal/advisor"
	"github.com/agriai/agriai/internal/agronomy"
	"github.com/agriai/agriai/internal/app"
	"github.com/agriai/agriai/internal/config"
	"github.com/agriai/agriai/internal/reports"
)

// Advisor is the advisory surface the commands drive.
type Advisor interface {
	Recommend(ctx context.Context, req agronomy.RecommendationRequest) (*agronomy.MergedRecommendationSet, error)
	AnalyzePest(ctx context.Context, image []byte, cropType string) *agronomy.PestAnalysisResult
	Chat(ctx context.Context, history []agronomy.Turn, message string) (*advisor.ChatReply, error)
	PredictYield(ctx context.Context, features agronomy.YieldFeatures) (*advisor.YieldResult, error)
}

// Reporter generates weekly farm reports.
type Reporter interface {
	Generate(ctx context.Context, farmID string, metrics agronomy.FarmMetrics) (*reports.Report, error)
}

// Backend is what a command talks to.
type Backend struct {
	Advisor  Advisor
	Reporter Reporter
	// Services is set when the backend was wired from configuration.
	Services *app.Services
}

// Connector builds a Backend from the loaded configuration.
type Connector func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error)

// Options configure the root command.
type Options struct {
	Version string
	Connect Connector
	Viper   *viper.Viper
	Stdin   io.Reader
}

// Connect wires the real AWS-backed services.
func Connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Backend, error) {
	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS.Region)
	if err != nil {
		return nil, err
	}
	services, err := app.Build(cfg, awsCfg, log)
	if err != nil {
		return nil, err
	}
	return &Backend{Advisor: services.Advisor, Reporter: services.Reports, Services: services}, nil
}

type state struct {
	opts    Options
	cfgFile string
	cfg     *config.Config
	log     zerolog.Logger
	backend *Backend
}

// RootCommand creates the agriai root command with every subcommand.
func RootCommand(opts Options) *cobra.Command {
	if opts.Connect == nil {
		opts.Connect = Connect
	}
	if opts.Viper == nil {
		opts.Viper = config.New()
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	st := &state{opts: opts}

	rootCmd := &cobra.Command{
		Use:           "agriai",
		Short:         "AgriAI farm advisory CLI",
		Version:       opts.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&st.cfgFile, "config", "", "Path to a config file (yaml, json or toml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("region", "", "AWS region")
	flags.String("mode", "", "Bedrock response mode: parsed or reference")
	flags.Bool("no-demo-fallback", false, "Fail inference calls instead of serving demo data")
	// Unchanged flags fall back to the viper defaults.
	for key, name := range map[string]string{
		"log_level":    "log-level",
		"aws.region":   "region",
		"bedrock.mode": "mode",
	} {
		_ = opts.Viper.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return st.initialize(cmd)
	}

	rootCmd.AddCommand(
		recommendCommand(st),
		pestCommand(st),
		chatCommand(st),
		yieldCommand(st),
		reportCommand(st),
		serveCommand(st),
	)
	return rootCmd
}

// initialize loads configuration and connects the backend before any subcommand runs.
func (st *state) initialize(cmd *cobra.Command) error {
	v := st.opts.Viper
	if noDemo, _ := cmd.Flags().GetBool("no-demo-fallback"); noDemo {
		v.Set("sagemaker.demo_fallback", false)
	}

	cfg, err := config.Load(v, st.cfgFile)
	if err != nil {
		return err
	}
	st.cfg = cfg
	st.log = app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, "agriai-cli", st.opts.Version)

	backend, err := st.opts.Connect(cmd.Context(), cfg, st.log)
	if err != nil {
		return fmt.Errorf("connecting to AI services: %w", err)
	}
	st.backend = backend
	return nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
