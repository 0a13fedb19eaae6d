package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/danmuck/genctl/internal/config"
	"github.com/danmuck/genctl/internal/generators"
	"github.com/danmuck/genctl/internal/history"
	"github.com/danmuck/genctl/internal/layout"
	"github.com/danmuck/genctl/internal/tools"
	"github.com/danmuck/genctl/internal/watch"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the network autogen, then the sensor config autogen",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	addRunFlags(cmd)
	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{history: true, tracing: true})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer s.Close()

	if dry, _ := cmd.Flags().GetBool("dry-run"); dry {
		printPlan(cmd.OutOrStdout(), s.plan)
		return nil
	}

	report, err := s.launcher(cmd).Run(cmd.Context(), s.plan)
	s.writeMetrics()
	printReport(cmd.ErrOrStderr(), report)
	return classify(err)
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Print the resolved paths and generator commands",
		Args:  cobra.NoArgs,
		RunE:  runPlan,
	}
	addRunFlags(cmd)
	cmd.Flags().String("format", "text", "Output format: text | json")
	return cmd
}

func runPlan(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer s.Close()

	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(planView(s.plan))
	case "text", "":
		printPlan(out, s.plan)
		return nil
	default:
		return exitError(exitGeneric, "unknown format %q", format)
	}
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check generator checkouts, scripts and YAML inputs without running",
		Args:  cobra.NoArgs,
		RunE:  runValidate,
	}
	addRunFlags(cmd)
	return cmd
}

func runValidate(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer s.Close()

	if err := s.launcher(cmd).Preflight(s.plan); err != nil {
		return classify(err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ok: %d generator(s) ready for %s\n", len(s.plan.Steps), s.layout.ProjectName)
	return nil
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the generators whenever an input YAML changes",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}
	addRunFlags(cmd)
	cmd.Flags().Bool("no-initial", false, "Wait for a change before the first run")
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{history: true, tracing: true})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer s.Close()

	launcher := s.launcher(cmd)
	rerun := func(ctx context.Context, _ []string) error {
		plan, err := s.newPlan()
		if err != nil {
			return err
		}
		report, err := launcher.Run(ctx, plan)
		s.writeMetrics()
		printReport(cmd.ErrOrStderr(), report)
		return err
	}

	if skip, _ := cmd.Flags().GetBool("no-initial"); !skip {
		if err := rerun(cmd.Context(), nil); err != nil {
			log.Error().Err(err).Msg("initial run failed")
		}
	}

	w, err := watch.New(watch.Config{Paths: s.plan.Inputs(), Debounce: s.cfg.Watch.Debounce})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer w.Close()

	log.Info().Strs("inputs", s.plan.Inputs()).Msg("watching generator inputs")
	return w.Run(cmd.Context(), rerun)
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent generator runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of records")
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd, sessionOptions{})
	if err != nil {
		return exitError(exitConfig, "%w", err)
	}
	defer s.Close()

	if !s.cfg.History.Enabled {
		return exitError(exitConfig, "history is disabled in %s", s.configPath)
	}
	store, err := history.Open(s.cfg.HistoryPath(s.layout.WorkingDir))
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSTEP\tSTATUS\tEXIT\tDURATION")
	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			rec.StartedAt.Local().Format(time.DateTime),
			shortID(rec.RunID),
			rec.StepID,
			rec.Status,
			rec.ExitCode,
			rec.Duration,
		)
	}
	return tw.Flush()
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a genctl.toml template into the project directory",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}
	cmd.Flags().Bool("force", false, "Overwrite an existing config file")
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	workdir, err := resolveWorkdir(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")
	target := filepath.Join(workdir, config.DefaultFileName)
	if err := config.WriteTemplate(target, force); err != nil {
		return exitError(exitConfig, "%w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", target)
	return nil
}

type planStepView struct {
	generators.Generator
	Command string `json:"command"`
}

type planDocument struct {
	RunID       string         `json:"run_id"`
	Interpreter string         `json:"interpreter"`
	Layout      layout.Layout  `json:"layout"`
	Steps       []planStepView `json:"steps"`
}

func planView(plan generators.Plan) planDocument {
	doc := planDocument{
		RunID:       plan.RunID,
		Interpreter: plan.Interpreter,
		Layout:      plan.Layout,
	}
	for _, g := range plan.Steps {
		doc.Steps = append(doc.Steps, planStepView{
			Generator: g,
			Command:   tools.CommandLine(plan.Invocation(g)),
		})
	}
	return doc
}

func printPlan(w io.Writer, plan generators.Plan) {
	l := plan.Layout
	fmt.Fprintf(w, "project:      %s\n", l.ProjectName)
	fmt.Fprintf(w, "working dir:  %s\n", l.WorkingDir)
	fmt.Fprintf(w, "parent dir:   %s\n", l.ParentDir)
	fmt.Fprintf(w, "car config:   %s\n", l.CarConfigPath)
	fmt.Fprintf(w, "local config: %s\n", l.LocalConfigPath)
	for i, g := range plan.Steps {
		fmt.Fprintf(w, "%d. %s (%s)\n", i+1, g.Name, g.ID)
		fmt.Fprintf(w, "   dir: %s\n", g.Dir)
		fmt.Fprintf(w, "   cmd: %s\n", tools.CommandLine(plan.Invocation(g)))
	}
}

func printReport(w io.Writer, report generators.Report) {
	for _, step := range report.Steps {
		fmt.Fprintf(w, "%-8s %-7s exit=%d %s\n", step.ID, step.Status, step.ExitCode, step.Duration.Round(time.Millisecond))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
