package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"strings"
	"text/tabwriter"
	"time"

	"hostdrift/internal/domain"
	"hostdrift/internal/report"
)

func runHistory(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var (
		configPath string
		dsn        string
		limit      int
		host       string
		runID      string
		prune      time.Duration
		asJSON     bool
		verbose    bool
	)
	fs.StringVar(&configPath, "config", "", "config file (default: discovered)")
	fs.StringVar(&dsn, "history", "", "run history: SQLite path or postgres:// URL")
	fs.IntVar(&limit, "limit", 20, "number of entries to show (0 for all)")
	fs.StringVar(&host, "host", "", "show one host's outcome across runs")
	fs.StringVar(&runID, "run", "", "show one stored run (\"latest\" for the most recent)")
	fs.DurationVar(&prune, "prune", 0, "delete runs older than this duration")
	fs.BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	setupLogging(verbose)

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	if dsn == "" {
		dsn = cfg.History.DSN
	}
	if dsn == "" {
		log.Printf("Error: %v", domain.NewConfigurationError(domain.ErrMissingSetting, "history.dsn", nil,
			"no history database: set history.dsn, -history or HOSTDRIFT_HISTORY_DSN"))
		return 1
	}

	store, err := openHistory(ctx, dsn)
	if err != nil {
		log.Printf("Error: %v", err)
		return 1
	}
	defer store.Close()

	switch {
	case prune > 0:
		n, err := store.PruneBefore(ctx, time.Now().Add(-prune))
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		fmt.Fprintf(stdout, "Pruned %d runs older than %s\n", n, prune)

	case runID != "":
		if runID == "latest" {
			runs, err := store.ListRuns(ctx, 1)
			if err != nil {
				log.Printf("Error: %v", err)
				return 1
			}
			if len(runs) == 0 {
				log.Printf("Error: %v", domain.ErrRunNotFound)
				return 1
			}
			runID = runs[0].ID
		}
		rep, err := store.GetRun(ctx, runID)
		if err != nil {
			log.Printf("Error: run %s: %v", runID, err)
			return 1
		}
		if asJSON {
			err = report.WriteJSON(stdout, rep)
		} else {
			err = report.WriteText(stdout, rep)
		}
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}

	case host != "":
		history, err := store.HostHistory(ctx, host, limit)
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		if asJSON {
			err = report.WriteJSON(stdout, history)
		} else {
			err = writeHostHistory(stdout, host, history, time.Now())
		}
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}

	default:
		runs, err := store.ListRuns(ctx, limit)
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
		if asJSON {
			err = report.WriteJSON(stdout, runs)
		} else {
			err = writeRuns(stdout, runs, time.Now())
		}
		if err != nil {
			log.Printf("Error: %v", err)
			return 1
		}
	}
	return 0
}

func writeRuns(w io.Writer, runs []domain.RunSummary, now time.Time) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "RUN\tGENERATED\tSTATUS\tMODE\tOK\tMISMATCH\tMISSING IN %s\tMISSING IN %s\n",
		strings.ToUpper(report.CMDBLabel), strings.ToUpper(report.LiveLabel))
	for _, r := range runs {
		status := strings.ToUpper(string(r.Status))
		if r.Partial {
			status += " (partial)"
		}
		s := r.Summary
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, since(r.GeneratedAt, now), status, r.Mode, s.OK, s.Warning, s.MissingInCMDB, s.MissingInLive)
	}
	return tw.Flush()
}

func writeHostHistory(w io.Writer, host string, history []domain.HostRun, now time.Time) error {
	if len(history) == 0 {
		_, err := fmt.Fprintf(w, "No stored results for %s.\n", host)
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tGENERATED\tSEVERITY\tMATCH\tMISMATCHES")
	for _, h := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			h.RunID, since(h.GeneratedAt, now), h.Severity, h.Match, strings.Join(h.Mismatches, ", "))
	}
	return tw.Flush()
}

// since is a short age for table output
func since(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
