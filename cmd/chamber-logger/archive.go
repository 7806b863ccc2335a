package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/sweeney/chamber-logger/internal/archive"
	"github.com/sweeney/chamber-logger/internal/config"
	"github.com/sweeney/chamber-logger/internal/logic"
)

var (
	archiveStart string
	archiveEnd   string
	archivePush  bool
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Archive a time window of the log to CSV",
	Long: `Exports every record created between --start and --end to a session
archive, exactly as the daemon does when a session ends. Times without a zone
are read in the configured timezone.`,
	Example: `  chamber-logger archive --start "2026-06-01 08:00:00" --end "2026-06-01 11:30:00"
  chamber-logger archive --start 2026-06-01T08:00:00+07:00 --end 2026-06-01T11:30:00+07:00 --push`,
	Args: cobra.NoArgs,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().StringVar(&archiveStart, "start", "", "Session start (required)")
	archiveCmd.Flags().StringVar(&archiveEnd, "end", "", "Session end (required)")
	archiveCmd.Flags().BoolVar(&archivePush, "push", false, "Commit and push the archive with git")
	archiveCmd.MarkFlagRequired("start")
	archiveCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(archiveCmd)
}

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := setupLogger(cfg.Logging)

	loc := cfg.Chamber.Location()
	sess, err := parseWindow(archiveStart, archiveEnd, loc)
	if err != nil {
		return err
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	var pub archive.Publisher
	if archivePush {
		pub = gitPublisher(cfg.Archive)
	}
	path, err := archiveWindow(cmd.Context(), archive.New(store, cfg.Archive.Folder, pub, logger), sess)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func archiveWindow(ctx context.Context, a *archive.Archiver, sess logic.Session) (string, error) {
	path, err := a.Archive(ctx, sess)
	if err != nil {
		return "", fmt.Errorf("archive %s - %s: %w", sess.Start.Format(time.RFC3339), sess.End.Format(time.RFC3339), err)
	}
	return path, nil
}

// timeLayouts are tried in order; layouts without a zone use the display zone.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t.In(loc), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD HH:MM:SS", s)
}

func parseWindow(start, end string, loc *time.Location) (logic.Session, error) {
	s, err := parseTime(start, loc)
	if err != nil {
		return logic.Session{}, fmt.Errorf("--start: %w", err)
	}
	e, err := parseTime(end, loc)
	if err != nil {
		return logic.Session{}, fmt.Errorf("--end: %w", err)
	}
	if !e.After(s) {
		return logic.Session{}, fmt.Errorf("--end (%s) must be after --start (%s)", end, start)
	}
	return logic.Session{Start: s, End: e}, nil
}
