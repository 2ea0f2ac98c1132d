package commands

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/openfroyo/typist/pkg/config"
	"github.com/openfroyo/typist/pkg/policy"
	"github.com/openfroyo/typist/pkg/telemetry"
)

// validateResult is the JSON form of one validated script.
type validateResult struct {
	*config.ParsedScript
	Lint *policy.Result `json:"lint,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		policies []string
		disable  []string
		noLint   bool
	)

	cmd := &cobra.Command{
		Use:   "validate <script>...",
		Short: "Validate typing scripts",
		Long: `Validate typing scripts without playing them.

This command checks:
  - Syntax of YAML, JSON, CUE and Starlark scripts
  - Script schema conformance (CUE)
  - Prop ranges and splitter names
  - That every content node has exactly one kind

Valid scripts are then linted with the built-in Rego policies plus any
given with --policy or lint.policies in the config. Lint errors make a
script invalid; warnings and notes are only reported.`,
		Example: `  # Validate one script
  typist validate intro.yaml

  # Validate several scripts and report as JSON
  typist validate --json scripts/*.cue

  # Add house rules and silence one built-in
  typist validate --policy policies/ --disable typing-speed intro.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, ctx, err := newEnvironment(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer env.Close()

			var lint *policy.Engine
			if !noLint {
				lint, err = newLintEngine(ctx, env, policies, disable)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			results := make([]validateResult, 0, len(args))
			invalid := 0

			for _, path := range args {
				op := telemetry.StartOperation(ctx, "validate", telemetry.AttrScript.String(path))
				parsed, err := env.parser.ParseFile(op.Ctx, path)
				if err == nil {
					err = parsed.Err()
				}

				var lintResult *policy.Result
				if err == nil && lint != nil {
					env.cfg.ApplyDefaults(parsed.Script)
					lintResult, err = lint.EvaluateScript(op.Ctx, parsed.Script)
					if err == nil && !lintResult.Allowed {
						err = fmt.Errorf("%d lint errors", lintResult.Count(policy.SeverityError))
					}
				}
				op.End(err)

				if parsed == nil {
					parsed = &config.ParsedScript{
						SourceFile: path,
						Errors:     []config.ValidationError{{File: path, Message: err.Error(), Severity: "error"}},
					}
				}
				results = append(results, validateResult{ParsedScript: parsed, Lint: lintResult})
				if err != nil {
					invalid++
				}

				if jsonOutput {
					continue
				}
				if err == nil {
					fmt.Fprintf(out, "✓ %s (%s, %d nodes)\n", path, parsed.Format, len(parsed.Script.Content))
				} else {
					fmt.Fprintf(out, "✗ %s\n", path)
					for _, ve := range parsed.Errors {
						fmt.Fprintf(out, "    %s\n", ve.String())
					}
					if len(parsed.Errors) == 0 && lintResult == nil {
						fmt.Fprintf(out, "    %v\n", err)
					}
				}
				if lintResult != nil {
					for _, v := range lintResult.Violations {
						fmt.Fprintf(out, "    %s\n", v.String())
					}
					for _, w := range lintResult.Warnings {
						fmt.Fprintf(out, "    %s\n", w)
					}
				}
			}

			if jsonOutput {
				if err := printJSON(out, results); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d scripts are invalid", invalid, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policies, "policy", nil, "extra .rego/.json policy files or directories")
	cmd.Flags().StringSliceVar(&disable, "disable", nil, "policies to skip")
	cmd.Flags().BoolVar(&noLint, "no-lint", false, "only check syntax and schema")

	return cmd
}

// newLintEngine builds the policy engine from the config and flags.
func newLintEngine(ctx context.Context, env *environment, paths, disable []string) (*policy.Engine, error) {
	eng, err := policy.NewEngine(env.logger)
	if err != nil {
		return nil, err
	}

	paths = append(slices.Clone(env.cfg.Lint.Policies), paths...)
	if len(paths) > 0 {
		if err := eng.LoadPolicies(ctx, paths); err != nil {
			return nil, err
		}
	}

	for _, name := range append(slices.Clone(env.cfg.Lint.Disable), disable...) {
		if err := eng.DisablePolicy(name); err != nil {
			return nil, err
		}
	}
	return eng, nil
}
