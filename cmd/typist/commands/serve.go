package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typist/pkg/server"
)

func newServeCommand() *cobra.Command {
	var (
		address   string
		dbPath    string
		noLint    bool
		heartbeat time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the preview server",
		Long: `Run the preview server.

Scripts posted to /api/sessions are animated server-side and every snapshot
is streamed to browsers as server-sent events on
/api/sessions/:id/stream. Sessions can be paused, resumed, restarted and
reconfigured while they run. Prometheus metrics are served on /metrics.

Posted scripts are linted with the configured policies first; scripts
with lint errors are rejected with 422.`,
		Example: `  # Serve on the configured address
  typist serve

  # Serve on all interfaces and keep run history
  typist serve --address 0.0.0.0:8420 --db typist.db

  # Start a session
  curl -X POST localhost:8420/api/sessions -d '{"content": ["Hello"]}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := newEnvironment(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer env.Close()

			if address != "" {
				env.cfg.Server.Address = address
			}

			opts := []server.Option{server.WithVersion(appVersion)}
			if heartbeat > 0 {
				opts = append(opts, server.WithHeartbeat(heartbeat))
			}
			store, err := env.openStore(ctx, dbPath)
			if err != nil {
				return err
			}
			if store != nil {
				opts = append(opts, server.WithStore(store))
			}
			if !noLint {
				lint, err := newLintEngine(ctx, env, nil, nil)
				if err != nil {
					return err
				}
				opts = append(opts, server.WithLint(lint))
			}

			return server.New(ctx, env.cfg, env.tel, opts...).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "", "listen address (default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "record run history in this SQLite database")
	cmd.Flags().BoolVar(&noLint, "no-lint", false, "accept scripts without linting them")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 15*time.Second, "interval of status events on idle streams")

	return cmd
}
