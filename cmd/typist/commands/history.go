package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typist/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded runs",
		Long: `Inspect the run history recorded by play --db and serve --db.

Every run stores its script, final status, completed passes and emissions,
along with the event log of its lifecycle.`,
	}

	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "history database (default from config)")

	cmd.AddCommand(newHistoryListCommand(&dbPath))
	cmd.AddCommand(newHistoryEventsCommand(&dbPath))
	cmd.AddCommand(newHistoryDeleteCommand(&dbPath))

	return cmd
}

// withStore runs fn against the history store.
func withStore(cmd *cobra.Command, dbPath string, fn func(env *environment, store *stores.SQLiteStore) error) error {
	env, ctx, err := newEnvironment(cmd.Context(), nil)
	if err != nil {
		return err
	}
	defer env.Close()

	path := dbPath
	if path == "" {
		path = env.cfg.Store.Path
	}
	if path == "" {
		return fmt.Errorf("no history database: pass --db or set store.path in the config")
	}

	store, err := stores.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	defer store.Close()

	cmd.SetContext(ctx)
	return fn(env, store)
}

func newHistoryListCommand(dbPath *string) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, most recent first",
		Example: `  # Show the last 20 runs
  typist history list --db typist.db

  # Page through older runs
  typist history list --db typist.db --limit 20 --offset 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *dbPath, func(env *environment, store *stores.SQLiteStore) error {
				runs, err := store.ListRuns(cmd.Context(), limit, offset)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), runs)
				}
				return printRuns(cmd.OutOrStdout(), runs)
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func printRuns(w io.Writer, runs []*stores.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSCRIPT\tSTATUS\tPASSES\tEMISSIONS\tSTARTED\tDURATION")
	for _, r := range runs {
		duration := "-"
		if r.CompletedAt != nil {
			duration = r.Duration().Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Script, r.Status, r.Passes, r.Emissions,
			r.StartedAt.Local().Format(time.DateTime), duration)
	}
	return tw.Flush()
}

func newHistoryEventsCommand(dbPath *string) *cobra.Command {
	var (
		eventType string
		level     string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "events <run-id>",
		Short: "Show the event log of a run",
		Example: `  # Show every event of a run
  typist history events 0d4c... --db typist.db

  # Only failures
  typist history events 0d4c... --db typist.db --level error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *dbPath, func(env *environment, store *stores.SQLiteStore) error {
				runID := args[0]
				if _, err := store.GetRun(cmd.Context(), runID); err != nil {
					return err
				}

				var typeFilter *string
				if eventType != "" {
					typeFilter = &eventType
				}
				var levelFilter *stores.EventLevel
				if level != "" {
					l := stores.EventLevel(level)
					levelFilter = &l
				}

				events, err := store.GetEvents(cmd.Context(), &runID, typeFilter, levelFilter, limit, 0)
				if err != nil {
					return err
				}
				if jsonOutput {
					return printJSON(cmd.OutOrStdout(), events)
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIME\tLEVEL\tTYPE\tPASS\tMESSAGE")
				for _, e := range events {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
						e.Timestamp.Local().Format(time.TimeOnly), e.Level, e.Type, e.Pass, e.Message)
				}
				return tw.Flush()
			})
		},
	}

	cmd.Flags().StringVar(&eventType, "type", "", "only events of this type")
	cmd.Flags().StringVar(&level, "level", "", "only events of this level (info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum number of events")

	return cmd
}

func newHistoryDeleteCommand(dbPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs and their events",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, *dbPath, func(env *environment, store *stores.SQLiteStore) error {
				for _, id := range args {
					if err := store.DeleteRun(cmd.Context(), id); err != nil {
						return err
					}
					env.logger.Info().Str("run_id", id).Msg("Run deleted")
				}
				return nil
			})
		},
	}

	return cmd
}
