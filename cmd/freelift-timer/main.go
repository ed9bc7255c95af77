// Package main provides the interactive workout timer.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/claude/freelift/internal/client"
	"github.com/claude/freelift/internal/config"
	"github.com/claude/freelift/internal/pending"
	"github.com/claude/freelift/internal/timer"
	"github.com/claude/freelift/internal/tui"
)

// Version is set at build time via -ldflags.
var Version = "dev"

const requestTimeout = 30 * time.Second

var (
	configPath string
	serverURL  string
	stateDir   string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "freelift-timer",
		Short:        "Workout timer for FreeLift",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultClientConfigPath(), "client config file (TOML)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "FreeLift server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", "", "directory for pending closes and logs (overrides config)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newWorkoutsCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newAbandonCmd())
	return rootCmd
}

// env is what every subcommand needs.
type env struct {
	client  *client.Client
	pending *pending.Store
	log     *slog.Logger
	logFile *os.File
}

func (e *env) Close() {
	if err := e.pending.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to close state db: %v\n", err)
	}
	e.logFile.Close()
}

// setup loads config, opens the pending store and points the logger at a
// file, since the terminal belongs to the TUI.
func setup() (*env, error) {
	cfg, err := config.LoadClient(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serverURL != "" {
		cfg.Server.URL = serverURL
	}
	if stateDir != "" {
		cfg.State.Dir = stateDir
	}

	store, err := pending.Open(cfg.State.Dir)
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(cfg.State.Dir, "timer.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo}))

	return &env{
		client:  client.New(cfg.Server.URL, cfg.Server.APIKey),
		pending: store,
		log:     log,
		logFile: f,
	}, nil
}

// flush replays pending closes and reports what happened on stderr.
func (e *env) flush(ctx context.Context) {
	cleared, err := e.pending.Flush(ctx, e.client, e.log)
	if cleared > 0 {
		fmt.Fprintf(os.Stderr, "saved %d unfinished workout(s)\n", cleared)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "some workouts are still unsaved, run `freelift-timer resume` later: %v\n", err)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <workout-id>",
		Short: "Start a workout and run the timer",
		Args:  cobra.ExactArgs(1),
		RunE:  runTimerCmd,
	}
}

func runTimerCmd(_ *cobra.Command, args []string) error {
	workoutID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || workoutID <= 0 {
		return fmt.Errorf("invalid workout id %q", args[0])
	}

	e, err := setup()
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	e.flush(ctx)
	cancel()

	t := timer.New(e.client, e.log)
	model := tui.NewModel(t, workoutID, e.pending, e.log)
	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), requestTimeout)
	tui.Settle(ctx, t, e.pending, e.log)
	cancel()

	snap := t.Snapshot()
	switch {
	case snap.Finalized:
		fmt.Printf("%s: %d min, %d kcal, %d/%d sets\n", snap.WorkoutName,
			timer.DurationMinutes(snap.Elapsed), timer.Calories(snap.Elapsed), snap.SetsDone, snap.TotalSets)
	case t.PendingClose() != nil:
		fmt.Fprintln(os.Stderr, "workout not saved yet, run `freelift-timer resume` when the server is reachable")
	case snap.SessionID != 0:
		fmt.Fprintf(os.Stderr, "session %d left open, finish it with `freelift-timer abandon %d`\n", snap.SessionID, snap.SessionID)
	}
	return nil
}

func newWorkoutsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workouts",
		Short: "List workouts you can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			workouts, err := e.client.ListWorkouts(ctx, 0)
			if err != nil {
				return fmt.Errorf("failed to list workouts: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTEMPLATE\tDIFFICULTY")
			for _, wo := range workouts {
				fmt.Fprintf(w, "%d\t%s\t%v\t%s %s\n", wo.ID, wo.Name, wo.IsTemplate, wo.Difficulty, tui.Badge(wo.Difficulty))
			}
			return w.Flush()
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Retry unsaved workouts and list sessions left open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()

			e.flush(ctx)

			open, err := e.client.OpenSessions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list open sessions: %w", err)
			}
			if len(open) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no open sessions")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tWORKOUT\tSTARTED")
			for _, s := range open {
				fmt.Fprintf(w, "%d\t%d\t%s\n", s.ID, s.WorkoutID, s.StartTime.Local().Format("2006-01-02 15:04"))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "abandon a session with `freelift-timer abandon <session>`")
			return nil
		},
	}
}

func newAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <session-id>",
		Short: "Close an open session without counting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid session id %q", args[0])
			}

			e, err := setup()
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			if _, err := e.client.AbandonSession(ctx, id); err != nil {
				return fmt.Errorf("failed to abandon session %d: %w", id, err)
			}
			if err := e.pending.Delete(id); err != nil {
				e.log.Warn("clearing pending close", "session_id", id, "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %d abandoned\n", id)
			return nil
		},
	}
}
