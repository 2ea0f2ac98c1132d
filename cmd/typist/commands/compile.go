package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typist/pkg/engine"
	"github.com/openfroyo/typist/pkg/render"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// actionView is the printable form of a compiled instruction.
type actionView struct {
	Type     engine.ActionType `json:"type"`
	Text     string            `json:"text,omitempty"`
	Node     string            `json:"node,omitempty"`
	Line     *engine.Line      `json:"line,omitempty"`
	Count    int               `json:"count,omitempty"`
	Duration string            `json:"duration,omitempty"`
}

func newActionView(a engine.Action) actionView {
	v := actionView{Type: a.Type, Text: a.Text, Count: a.Count}
	switch a.Type {
	case engine.ActionTypeElement:
		if a.Node != nil {
			v.Node = a.Node.String()
		}
	case engine.ActionPaste:
		line := a.Line
		v.Line = &line
	case engine.ActionPause:
		v.Duration = a.Duration.String()
	}
	return v
}

func (v actionView) argument() string {
	switch v.Type {
	case engine.ActionTypeString:
		return fmt.Sprintf("%q", v.Text)
	case engine.ActionTypeElement:
		return v.Node
	case engine.ActionBackspace:
		return fmt.Sprint(v.Count)
	case engine.ActionPause:
		return v.Duration
	case engine.ActionPaste:
		return v.Line.String()
	}
	return ""
}

func newCompileCommand() *cobra.Command {
	var (
		fold     bool
		simulate bool
	)

	cmd := &cobra.Command{
		Use:   "compile <script>",
		Short: "Show the instructions a script compiles to",
		Long: `Compile a script into its flat instruction list.

With --fold the instructions are applied without any timing and the text a
single pass ends with is printed. With --simulate the script is played with
zero delays and every emitted snapshot is printed in order.`,
		Example: `  # List the instructions
  typist compile intro.yaml

  # Print the final text
  typist compile intro.yaml --fold

  # Print every frame as JSON
  typist compile intro.yaml --simulate --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := newEnvironment(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer env.Close()

			op := telemetry.StartOperation(ctx, "compile", telemetry.AttrScript.String(args[0]))
			err = compileScript(op, env, cmd.OutOrStdout(), args[0], fold, simulate)
			op.End(err)
			return err
		},
	}

	cmd.Flags().BoolVar(&fold, "fold", false, "print the final text of one pass")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "print every snapshot of one pass")
	cmd.MarkFlagsMutuallyExclusive("fold", "simulate")

	return cmd
}

func compileScript(op *telemetry.InstrumentedContext, env *environment, out io.Writer, path string, fold, simulate bool) error {
	script, err := env.loadScript(op.Ctx, path)
	if err != nil {
		return err
	}
	props, err := script.EngineProps()
	if err != nil {
		return err
	}
	actions := props.Content.Compile()
	op.Span.SetAttributes(telemetry.AttrActions.Int(len(actions)))

	switch {
	case fold:
		lines := engine.Fold(actions, props.Splitter)
		if jsonOutput {
			return printJSON(out, lines)
		}
		_, err := fmt.Fprintln(out, render.Text(lines, 0))
		return err

	case simulate:
		frames, err := simulatePass(op, actions, props)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(out, frames)
		}
		for i, f := range frames {
			fmt.Fprintf(out, "%4d  %q\n", i, render.Text(f, 0))
		}
		return nil
	}

	views := make([]actionView, len(actions))
	for i, a := range actions {
		views[i] = newActionView(a)
	}
	if jsonOutput {
		return printJSON(out, views)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for i, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, v.Type, v.argument())
	}
	return tw.Flush()
}

// simulatePass runs one pass with every delay and pause removed and returns
// the emitted snapshots.
func simulatePass(op *telemetry.InstrumentedContext, actions []engine.Action, props engine.Props) ([]engine.Lines, error) {
	instant := make(engine.Actions, 0, len(actions))
	for _, a := range actions {
		if a.Type != engine.ActionPause {
			instant = append(instant, a)
		}
	}
	props.Content = instant
	props.TypingDelay = 0
	props.BackspaceDelay = 0
	props.Loop = false
	props.Paused = false

	rec := render.NewRecorder()
	typist := engine.NewTypist(props, rec.Sink,
		engine.WithLogger(op.Logger.Zerolog()),
		engine.WithPollInterval(time.Millisecond),
	)
	if err := typist.Run(op.Ctx); err != nil {
		return nil, err
	}
	op.Span.SetAttributes(telemetry.AttrEmissions.Int(rec.Len()))
	return rec.Frames(), nil
}
