package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/catalogscan/internal/config"
	"github.com/nao1215/catalogscan/internal/database"
	"github.com/spf13/cobra"
)

const historyTimeFormat = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command and its subcommands.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded crawl runs",
		Long: `History reads the run database written by 'catalogscan crawl'.

Every crawl records its sources, the pages it fetched and the products it
found. The history subcommands list past runs, show how each source of a
run ended, and report products that appeared or disappeared between runs.

Examples:
  # List the 20 most recent runs
  catalogscan history list

  # Show every source of run 12 with its page log
  catalogscan history show 12 --pages

  # Products first seen in the latest run
  catalogscan history new

  # Products of the previous run that the latest run did not find
  catalogscan history missing`,
	}

	cmd.PersistentFlags().String("db-dir", config.XDGDataDir(),
		"Directory holding the history database")
	cmd.PersistentFlags().BoolP("json", "j", false,
		"Output in JSON format")

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryProductsCmd("new", "List products first seen in a run"))
	cmd.AddCommand(newHistoryProductsCmd("missing", "List products of the previous run not found in a run"))

	return cmd
}

func newHistoryListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			limit, err := cmd.Flags().GetInt("limit")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				runs, err := db.ListRuns(ctx, limit)
				if err != nil {
					return err
				}
				if historyJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), runs)
				}
				printRuns(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}
	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 lists all)")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the sources of a run (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showPages, err := cmd.Flags().GetBool("pages")
			if err != nil {
				return err
			}
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				id, err := resolveRunID(ctx, db, args)
				if err != nil {
					return err
				}
				run, err := db.GetRun(ctx, id)
				if err != nil {
					return err
				}
				crawls, err := db.SourceCrawls(ctx, id)
				if err != nil {
					return err
				}
				if historyJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), struct {
						Run     *database.RunRecord          `json:"run"`
						Sources []database.SourceCrawlRecord `json:"sources"`
					}{run, crawls})
				}
				return printRunDetail(ctx, cmd.OutOrStdout(), db, run, crawls, showPages)
			})
		},
	}
	cmd.Flags().Bool("pages", false, "Include the page log of every source")
	return cmd
}

func newHistoryProductsCmd(use, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [run-id]",
		Short: short + " (default: latest)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withHistoryDB(cmd, func(ctx context.Context, db *database.HistoryDB) error {
				id, err := resolveRunID(ctx, db, args)
				if err != nil {
					return err
				}

				var names []string
				if use == "new" {
					names, err = db.NewProducts(ctx, id)
				} else {
					names, err = db.MissingProducts(ctx, id)
				}
				if err != nil {
					return err
				}

				if historyJSON(cmd) {
					return writeJSON(cmd.OutOrStdout(), names)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run %d: %d %s products\n", id, len(names), use)
				for _, n := range names {
					fmt.Fprintf(out, "  %s\n", n)
				}
				return nil
			})
		},
	}
}

// withHistoryDB opens the history database named by --db-dir and calls fn.
func withHistoryDB(cmd *cobra.Command, fn func(ctx context.Context, db *database.HistoryDB) error) error {
	dir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return fn(cmd.Context(), db)
}

func historyJSON(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

// resolveRunID parses the optional run ID argument, defaulting to the
// latest run.
func resolveRunID(ctx context.Context, db *database.HistoryDB, args []string) (int64, error) {
	if len(args) == 0 {
		id, err := db.LatestRunID(ctx)
		if errors.Is(err, database.ErrRunNotFound) {
			return 0, errors.New("no runs recorded yet (run 'catalogscan crawl' first)")
		}
		return id, err
	}

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid run ID: %q", args[0])
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRuns(w io.Writer, runs []database.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}

	fmt.Fprintf(w, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(w, "  %-6s  %-19s  %-9s  %-8s  %-8s  %-8s  %s\n",
		"ID", "Started", "Elapsed", "Sources", "Failed", "Unique", "Status")
	for _, r := range runs {
		fmt.Fprintf(w, "  %-6d  %-19s  %-9s  %-8d  %-8d  %-8d  %s\n",
			r.ID,
			r.StartedAt.Local().Format(historyTimeFormat),
			r.Elapsed().Round(time.Second),
			r.SourceCount,
			r.FailedSources,
			r.UniqueItems,
			runStatus(r),
		)
	}
}

func runStatus(r database.RunRecord) string {
	switch {
	case r.Error != "":
		return "error: " + r.Error
	case !r.Written:
		return "not written"
	default:
		return "ok"
	}
}

func printRunDetail(ctx context.Context, w io.Writer, db *database.HistoryDB, run *database.RunRecord, crawls []database.SourceCrawlRecord, showPages bool) error {
	fmt.Fprintf(w, "Run %d\n", run.ID)
	fmt.Fprintf(w, "  Started:  %s\n", run.StartedAt.Local().Format(historyTimeFormat))
	fmt.Fprintf(w, "  Elapsed:  %s\n", run.Elapsed().Round(time.Millisecond))
	fmt.Fprintf(w, "  Products: %d unique of %d total\n", run.UniqueItems, run.TotalItems)
	if run.OutputFile != "" {
		fmt.Fprintf(w, "  Output:   %s\n", run.OutputFile)
	}
	fmt.Fprintf(w, "  Status:   %s\n\n", runStatus(*run))

	for _, c := range crawls {
		fmt.Fprintf(w, "[%d] %s\n", c.Position+1, c.SourceURL)
		fmt.Fprintf(w, "    stop: %s, items: %d, pages: %d, requests: %d, took %s\n",
			c.StopReason, c.Items, c.Pages, c.Attempts, c.Duration.Round(time.Millisecond))
		if c.Error != "" {
			fmt.Fprintf(w, "    error: %s\n", c.Error)
		}

		if !showPages {
			continue
		}
		pages, err := db.Pages(ctx, c.ID)
		if err != nil {
			return err
		}
		for _, p := range pages {
			fmt.Fprintf(w, "    page %-4d %-10s %4d items  %s\n", p.Number(), p.Outcome, p.ItemCount, p.URL)
		}
	}
	return nil
}
