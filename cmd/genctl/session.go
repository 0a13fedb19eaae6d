package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danmuck/genctl/internal/config"
	"github.com/danmuck/genctl/internal/generators"
	"github.com/danmuck/genctl/internal/history"
	"github.com/danmuck/genctl/internal/layout"
	"github.com/danmuck/genctl/internal/observability"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
)

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("interpreter", "", "Interpreter used to run the generator scripts")
	cmd.Flags().String("policy", "", "Failure policy: fail_fast | continue | ignore")
	cmd.Flags().StringSlice("only", nil, "Run only these steps (network, sensor)")
	cmd.Flags().Bool("no-preflight", false, "Skip path and input checks before running")
	cmd.Flags().Bool("changed-only", false, "Skip generators whose input and script are unchanged since the last success")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history ledger")
	cmd.Flags().Bool("dry-run", false, "Print the generator commands without running them")
	cmd.Flags().String("metrics-textfile", "", "Write prometheus metrics to this file after the run")
}

// session is the resolved state shared by every subcommand.
type session struct {
	cfg        config.Config
	configPath string
	layout     layout.Layout
	plan       generators.Plan
	history    *history.Store
	tracer     trace.Tracer
	shutdown   observability.ShutdownFunc
}

type sessionOptions struct {
	history bool
	tracing bool
}

func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	workdir, err := resolveWorkdir(cmd)
	if err != nil {
		return nil, err
	}

	cfg, configPath, err := loadConfig(cmd, workdir)
	if err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(cmd, &cfg); err != nil {
		return nil, err
	}

	if cfg.PathStyle == layout.StyleNative {
		abs, err := filepath.Abs(workdir)
		if err != nil {
			return nil, fmt.Errorf("resolve workdir: %w", err)
		}
		workdir = abs
	}
	l, err := layout.Resolve(workdir, cfg.PathStyle, cfg.Offsets)
	if err != nil {
		return nil, err
	}
	plan, err := generators.NewPlan(l, cfg.PlanConfig())
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:        cfg,
		configPath: configPath,
		layout:     l,
		plan:       plan,
		shutdown:   func(context.Context) error { return nil },
	}

	if opts.tracing {
		tracer, shutdown, err := observability.InitTracing(cmd.Context(), observability.TracingConfig{
			Endpoint: cfg.Tracing.Endpoint,
			Insecure: cfg.Tracing.Insecure,
		})
		if err != nil {
			return nil, err
		}
		s.tracer = tracer
		s.shutdown = shutdown
	}

	if opts.history && cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath(l.WorkingDir))
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		s.history = store
	}

	log.Debug().
		Str("workdir", l.WorkingDir).
		Str("config", configPath).
		Str("run_id", plan.RunID).
		Msg("session ready")
	return s, nil
}

func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("tracing shutdown failed")
	}
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

// newPlan rebuilds the plan with a fresh run id, e.g. for watch reruns.
func (s *session) newPlan() (generators.Plan, error) {
	return generators.NewPlan(s.layout, s.cfg.PlanConfig())
}

func (s *session) launcher(cmd *cobra.Command) *generators.Launcher {
	cfg := generators.LauncherConfig{
		Policy:      s.cfg.Policy,
		Preflight:   s.cfg.Preflight,
		ChangedOnly: s.cfg.ChangedOnly,
		Tracer:      s.tracer,
		Stdin:       cmd.InOrStdin(),
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
	}
	// a nil *history.Store must not become a non-nil Recorder
	if s.history != nil {
		cfg.History = s.history
	}
	return generators.NewLauncher(cfg)
}

func (s *session) writeMetrics() {
	if s.cfg.Metrics.Textfile == "" {
		return
	}
	if err := observability.WriteTextfile(s.cfg.Metrics.Textfile); err != nil {
		log.Warn().Err(err).Msg("metrics export failed")
	}
}

func resolveWorkdir(cmd *cobra.Command) (string, error) {
	workdir, _ := cmd.Flags().GetString("workdir")
	if strings.TrimSpace(workdir) != "" {
		return workdir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getwd: %w", err)
	}
	return wd, nil
}

func loadConfig(cmd *cobra.Command, workdir string) (config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if strings.TrimSpace(path) != "" {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	path = filepath.Join(workdir, config.DefaultFileName)
	cfg, found, err := config.LoadOptional(path)
	if !found {
		path = ""
	}
	return cfg, path, err
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Lookup("interpreter") == nil {
		return nil
	}
	if flags.Changed("interpreter") {
		cfg.Interpreter, _ = flags.GetString("interpreter")
	}
	if flags.Changed("policy") {
		raw, _ := flags.GetString("policy")
		policy, err := generators.ParsePolicy(raw)
		if err != nil {
			return err
		}
		cfg.Policy = policy
	}
	if flags.Changed("only") {
		only, _ := flags.GetStringSlice("only")
		cfg.Steps = config.NormalizeSteps(only)
	}
	if v, _ := flags.GetBool("no-preflight"); v {
		cfg.Preflight = false
	}
	if v, _ := flags.GetBool("changed-only"); v {
		cfg.ChangedOnly = true
	}
	if v, _ := flags.GetBool("no-history"); v {
		cfg.History.Enabled = false
	}
	if flags.Changed("metrics-textfile") {
		cfg.Metrics.Textfile, _ = flags.GetString("metrics-textfile")
	}
	return config.Validate(*cfg)
}
