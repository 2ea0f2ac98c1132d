package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/render"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// playFlags override script props from the command line.
type playFlags struct {
	watch          bool
	loop           bool
	typingDelay    time.Duration
	backspaceDelay time.Duration
	splitter       string
	cursor         string
	disabled       bool
	interactive    bool
	dbPath         string
	metricsAddr    string
	width          int
}

func newPlayCommand() *cobra.Command {
	var flags playFlags

	cmd := &cobra.Command{
		Use:   "play <script>",
		Short: "Animate a script in the terminal",
		Long: `Animate a script in the terminal, redrawing the text in place.

Flags override the props set in the script. With --watch the script is
re-read whenever it changes: delays apply immediately and new content at
the start of the next pass.

Interactive keys (--interactive):
  space   pause or resume
  r       restart from the beginning
  q       quit`,
		Example: `  # Play a script once
  typist play intro.yaml

  # Loop forever and reload on save
  typist play intro.yaml --loop --watch

  # Faster typing, grapheme units and a block cursor
  typist play intro.yaml --typing-delay 30ms --splitter grapheme --cursor '▌'

  # Print the final text without animating
  typist play intro.yaml --disabled`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args[0], flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "reload the script when it changes")
	cmd.Flags().BoolVar(&flags.loop, "loop", false, "restart after every completed pass")
	cmd.Flags().DurationVar(&flags.typingDelay, "typing-delay", 0, "time between two typed units")
	cmd.Flags().DurationVar(&flags.backspaceDelay, "backspace-delay", 0, "time between two erased units")
	cmd.Flags().StringVar(&flags.splitter, "splitter", "", "typing unit: codepoint, grapheme or word")
	cmd.Flags().StringVar(&flags.cursor, "cursor", "", "cursor drawn after the last typed character")
	cmd.Flags().BoolVar(&flags.disabled, "disabled", false, "print the final text without animating")
	cmd.Flags().BoolVarP(&flags.interactive, "interactive", "i", false, "enable keyboard controls")
	cmd.Flags().StringVar(&flags.dbPath, "db", "", "record run history in this SQLite database")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().IntVar(&flags.width, "width", 0, "truncate rows to this width instead of the terminal's")

	return cmd
}

func runPlay(cmd *cobra.Command, path string, flags playFlags) error {
	env, ctx, err := newEnvironment(cmd.Context(), func(c *telemetry.Config) {
		if flags.metricsAddr != "" {
			c.Metrics.Enabled = true
			c.Metrics.ListenAddress = flags.metricsAddr
		}
	})
	if err != nil {
		return err
	}
	defer env.Close()

	script, err := env.loadScript(ctx, path)
	if err != nil {
		return err
	}
	flags.apply(cmd, script)

	props, err := script.EngineProps()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if script.Props.Disabled {
		lines := engine.Fold(props.Content.Compile(), props.Splitter)
		if jsonOutput {
			return printJSON(out, lines)
		}
		_, err := fmt.Fprintln(out, render.Text(lines, flags.width))
		return err
	}

	if _, err := env.openStore(ctx, flags.dbPath); err != nil {
		return err
	}
	if err := env.tel.Metrics.Serve(ctx, env.logger); err != nil {
		return err
	}

	termOpts := []render.TerminalOption{render.WithCursor(script.Props.Cursor)}
	if flags.width > 0 {
		termOpts = append(termOpts, render.WithWidth(flags.width))
	}
	terminal := render.NewTerminal(out, termOpts...)

	typist := engine.NewTypist(props, terminal.Sink,
		engine.WithLogger(env.logger),
		engine.WithObserver(env.tel.NewObserver(ctx, script.Name)),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if flags.watch {
		watcher := config.NewWatcher(env.parser, path, 0, env.logger)
		defer watcher.Close()
		err := watcher.Watch(ctx, func(s *config.Script) error {
			env.cfg.ApplyDefaults(s)
			flags.apply(cmd, s)
			next, err := s.EngineProps()
			if err != nil {
				return err
			}
			reload(typist, next)
			terminal.SetCursor(s.Props.Cursor)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if flags.interactive {
		keys, err := newKeyReader(os.Stdin)
		if err != nil {
			return err
		}
		defer keys.Restore()
		go keys.Run(ctx, typist, cancel)
	}

	if _, err := typist.Start(ctx); err != nil {
		return err
	}
	status := waitForTypist(ctx, typist)
	terminal.Finish()

	if jsonOutput {
		return printJSON(out, map[string]any{
			"run_id": typist.RunID(),
			"script": script.Name,
			"status": status,
			"passes": typist.Passes(),
			"lines":  typist.Lines(),
		})
	}
	return nil
}

// waitForTypist blocks until the latest run ends or ctx is done. A restart
// replaces the run being waited on.
func waitForTypist(ctx context.Context, typist *engine.Typist) engine.RunStatus {
	for {
		done := typist.Done()
		select {
		case <-ctx.Done():
			typist.Cancel()
			<-typist.Done()
			return typist.Status()
		case <-done:
			if typist.Done() != done {
				continue
			}
			return typist.Status()
		}
	}
}

// reload installs the props of a re-read script, keeping the pause flag.
func reload(typist *engine.Typist, next engine.Props) {
	typist.Update(func(p *engine.Props) {
		p.Content = next.Content
		p.TypingDelay = next.TypingDelay
		p.BackspaceDelay = next.BackspaceDelay
		p.Loop = next.Loop
		p.Splitter = next.Splitter
	})
}

// apply overrides the script props with every flag set on the command line.
func (f playFlags) apply(cmd *cobra.Command, s *config.Script) {
	changed := cmd.Flags().Changed
	if changed("loop") {
		s.Props.Loop = f.loop
	}
	if changed("typing-delay") {
		s.Props.TypingDelay = config.NewDuration(f.typingDelay)
	}
	if changed("backspace-delay") {
		s.Props.BackspaceDelay = config.NewDuration(f.backspaceDelay)
	}
	if changed("splitter") {
		s.Props.Splitter = f.splitter
	}
	if changed("cursor") {
		s.Props.Cursor = f.cursor
	}
	if changed("disabled") {
		s.Props.Disabled = f.disabled
	}
}

// scriptName derives a script name from its file name.
func scriptName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
