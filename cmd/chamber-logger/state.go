package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweeney/chamber-logger/internal/config"
	"github.com/sweeney/chamber-logger/internal/logic"
	"github.com/sweeney/chamber-logger/internal/storage"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Print the state the daemon would resume in",
	Long: `Reads the most recent record from the durable log and prints the state
startup reconciliation would choose, without changing anything.`,
	Args: cobra.NoArgs,
	RunE: runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	return printState(ctx, cmd.OutOrStdout(), store, cfg.Chamber, time.Now())
}

func printState(ctx context.Context, w io.Writer, store storage.Store, c config.ChamberConfig, now time.Time) error {
	loc := c.Location()
	now = now.In(loc)

	var latest *logic.Mark
	rec, err := store.Latest(ctx)
	switch {
	case err == nil:
		mark := rec.Mark()
		latest = &mark
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("read latest record: %w", err)
	}

	st := logic.Reconcile(now, latest, c.StartupThreshold)
	fmt.Fprintf(w, "state: %s (%s)\n", st.State, st.Reason)
	if st.State == logic.StateOn {
		start, err := openSessionStart(ctx, store, rec, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "session start: %s\n", start.In(loc).Format(time.RFC3339))
	}
	if st.Recover {
		fmt.Fprintln(w, "interrupted session will be archived on startup")
	}
	if latest != nil {
		fmt.Fprintf(w, "last record: #%d %s at %s\n", rec.ID, rec.Status, rec.CreatedAt.In(loc).Format(time.RFC3339))
	}
	return nil
}

// openSessionStart walks back from latest the way the daemon does on resume.
func openSessionStart(ctx context.Context, store storage.Store, latest storage.LogRecord, c config.ChamberConfig) (time.Time, error) {
	recs, err := store.Range(ctx, latest.CreatedAt.Add(-c.SessionLookback), latest.CreatedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("read open session: %w", err)
	}
	marks := make([]logic.Mark, len(recs))
	for i, r := range recs {
		marks[i] = r.Mark()
	}
	if sess, ok := logic.RecoverSession(marks, c.TimeoutOff); ok {
		return sess.Start, nil
	}
	return latest.CreatedAt, nil
}
