package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aschepis/backscratcher/gaps/gap"
	"github.com/aschepis/backscratcher/gaps/mcpserver"
	"github.com/aschepis/backscratcher/gaps/runtime"
	"github.com/aschepis/backscratcher/gaps/store"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbDSN      string
	logFile    string
	pretty     bool
	record     bool
	sweepOnce  bool

	rootCmd = &cobra.Command{
		Use:          "gaps",
		Short:        "Find what is not yet known about a user and ask about it",
		SilenceUsage: true,
	}

	questionCmd = &cobra.Command{
		Use:   "question <user-id>",
		Short: "Print the single most valuable gap and a question that would close it",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuestion,
	}

	analysisCmd = &cobra.Command{
		Use:   "analysis <user-id>",
		Short: "Print the top three ranked gaps and which to ask about first",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalysis,
	}

	answeredCmd = &cobra.Command{
		Use:   "answered <question-id>",
		Short: "Mark a recorded question as answered",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnswered,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded sqlite schema",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}

	seedCmd = &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Import a YAML user fixture into the datastore",
		Args:  cobra.ExactArgs(1),
		RunE:  runSeed,
	}

	sweepCmd = &cobra.Command{
		Use:   "sweep",
		Short: "Run the gap pipeline for the configured users on a schedule",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the gap tools over MCP stdio",
		Args:  cobra.NoArgs,
		RunE:  runMCP,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default $GAPS_CONFIG_PATH or ~/.gaps/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db", "", "Database DSN, overriding database.dsn")
	rootCmd.PersistentFlags().StringVar(&logFile, "logfile", "", "Path to log file. If not set, logs to stderr")
	rootCmd.PersistentFlags().BoolVar(&pretty, "pretty", false, "Use pretty console output (only valid when logfile is not set)")

	questionCmd.Flags().BoolVar(&record, "record", false, "Store the question as sent")
	sweepCmd.Flags().BoolVar(&sweepOnce, "once", false, "Sweep every user once and exit")

	rootCmd.AddCommand(questionCmd, analysisCmd, answeredCmd, migrateCmd, seedCmd, sweepCmd, mcpCmd)
}

func runQuestion(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service()
	if err != nil {
		return err
	}
	result := svc.GenerateGapQuestion(ctx, a.store, args[0])

	out := struct {
		gap.QuestionResult
		QuestionID int64 `json:"question_id,omitempty"`
	}{QuestionResult: result}

	if record {
		id, err := a.store.RecordProactiveQuestion(ctx, &store.ProactiveQuestion{
			UserID:   args[0],
			Gap:      result.Gap,
			Question: result.Question,
			Source:   string(result.Source),
		})
		if err != nil {
			return fmt.Errorf("failed to record question: %w", err)
		}
		out.QuestionID = id
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service()
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), svc.GenerateGapAnalysis(ctx, a.store, args[0]))
}

func runAnswered(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid question id %q: %w", args[0], err)
	}
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.store.MarkQuestionAnswered(ctx, id, time.Now())
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.logger.Info().Msg("Migrations applied")
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer f.Close() //nolint:errcheck // Read-only file

	fixture, err := store.LoadFixture(f)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.Seed(ctx, fixture); err != nil {
		return fmt.Errorf("failed to seed %s: %w", fixture.UserID, err)
	}
	a.logger.Info().Str("user_id", fixture.UserID).Str("file", args[0]).Msg("Fixture seeded")
	return nil
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service()
	if err != nil {
		return err
	}
	schedule, err := runtime.ParseSchedule(a.cfg.Sweep.Schedule)
	if err != nil {
		return err
	}
	sweeper, err := runtime.NewSweeper(svc, a.store, a.store, schedule, runtime.SweepOptions{
		Users:  a.cfg.Sweep.Users,
		Mode:   a.cfg.Sweep.Mode,
		Record: a.cfg.Sweep.Record,
	}, a.logger)
	if err != nil {
		return err
	}

	if sweepOnce {
		return printJSON(cmd.OutOrStdout(), sweepSummaries(sweeper.RunOnce(ctx)))
	}
	sweeper.Start(ctx)
	return nil
}

type sweepSummary struct {
	UserID     string `json:"user_id"`
	Mode       string `json:"mode"`
	Source     string `json:"source,omitempty"`
	Gap        string `json:"gap,omitempty"`
	Question   string `json:"question,omitempty"`
	QuestionID int64  `json:"question_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

func sweepSummaries(results []runtime.SweepResult) []sweepSummary {
	out := make([]sweepSummary, 0, len(results))
	for _, r := range results {
		s := sweepSummary{
			UserID:     r.UserID,
			Mode:       r.Mode,
			Source:     string(r.Source),
			Gap:        r.Gap,
			Question:   r.Question,
			QuestionID: r.QuestionID,
		}
		if r.Err != nil {
			s.Error = r.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

func runMCP(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	svc, err := a.service()
	if err != nil {
		return err
	}
	return mcpserver.New(svc, a.store, a.store, a.logger).ServeStdio()
}
