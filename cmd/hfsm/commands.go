package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/amp-labs/amp-hfsm/cli"
	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/amp-labs/amp-hfsm/statemachine/validator"
	"github.com/amp-labs/amp-hfsm/statemachine/visualizer"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultMailboxDepth = 16

func newValidateCmd(a *app) *cobra.Command {
	var strict, fix bool

	cmd := &cobra.Command{
		Use:   "validate <config.yaml>...",
		Short: "Check state machine definitions for errors and warnings",
		Long:  `The validate command reports structural errors, warnings and suggestions for each definition. It exits non-zero when any definition is invalid.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			invalid := false

			for _, path := range args {
				result, err := validator.ValidateFileWithOptions(path, strict)

				_, _ = fmt.Fprintf(a.stdout, "%s\n%s", path, result.String())

				if err != nil || !result.Valid {
					invalid = true
				}

				if err == nil && fix && len(result.Fixes()) > 0 {
					if err := printFixed(a, path, result); err != nil {
						return err
					}
				}
			}

			if invalid {
				return errInvalid
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")
	cmd.Flags().BoolVar(&fix, "fix", false, "print the definition with every suggested fix applied")

	return cmd
}

func printFixed(a *app, path string, result validator.ValidationResult) error {
	config, err := parseFile(path)
	if err != nil {
		return err
	}

	if err := validator.ApplyFixes(config, result.Fixes()); err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding fixed definition: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "\n# %s with fixes applied\n%s", path, data)

	return nil
}

func newMermaidCmd(a *app) *cobra.Command {
	var (
		direction   string
		theme       string
		noListeners bool
		noNames     bool
		highlight   bool
	)

	cmd := &cobra.Command{
		Use:   "mermaid <config.yaml>",
		Short: "Render a definition as a Mermaid state diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			opts := visualizer.DefaultOptions().
				WithDirection(direction).
				WithTheme(theme).
				WithShowListeners(!noListeners).
				WithShowTransitionNames(!noNames)

			var (
				diagram string
				err     error
			)

			if highlight {
				diagram, err = initialDiagram(args[0], opts)
			} else {
				var config *statemachine.Config

				config, err = parseFile(args[0])
				if err == nil {
					diagram, err = visualizer.GenerateMermaidWithOptions(config, opts)
				}
			}

			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(a.stdout, diagram)

			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "TD", "layout direction, TD or LR")
	cmd.Flags().StringVar(&theme, "theme", "default", "Mermaid theme")
	cmd.Flags().BoolVar(&noListeners, "no-listeners", false, "hide guards and listeners")
	cmd.Flags().BoolVar(&noNames, "no-names", false, "hide transition names")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "highlight the initial branch")

	return cmd
}

// initialDiagram builds the automaton so that the diagram highlights the branch
// it starts in.
func initialDiagram(path string, opts visualizer.Options) (string, error) {
	automaton, err := buildAutomaton(path)
	if err != nil {
		return "", err
	}
	defer automaton.Destroy()

	return visualizer.GenerateMermaidFromAutomaton(automaton, opts)
}

func newRunCmd(a *app) *cobra.Command {
	var (
		depth   int
		mermaid bool
	)

	cmd := &cobra.Command{
		Use:   "run <config.yaml> <transition[=arg,...]>...",
		Short: "Apply transitions in order and print the branch after each",
		Long: `The run command builds the automaton and applies each transition in order. Arguments after "=" are
passed as the payload, comma separated. Guards, handlers and resolvers the definition names but the
built-ins do not provide are replaced by permissive stand-ins. Paused transitions are resumed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			automaton, err := buildAutomaton(args[0])
			if err != nil {
				return err
			}
			defer automaton.Destroy()

			ctx := cmd.Context()

			mailbox := statemachine.NewMailbox(ctx, automaton, depth)
			defer mailbox.Stop()

			branch, err := mailbox.CurrentBranch(ctx)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(a.stdout, "%-24s %s\n", "(initial)", strings.Join(branch, " > "))

			for _, step := range args[1:] {
				if err := runStep(ctx, a, mailbox, step); err != nil {
					return err
				}
			}

			if !mermaid {
				return nil
			}

			return mailbox.Do(ctx, func(_ context.Context, au *statemachine.Automaton) error {
				diagram, err := visualizer.GenerateMermaidFromAutomaton(au, visualizer.DefaultOptions())
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(a.stdout, diagram)

				return nil
			})
		},
	}

	cmd.Flags().IntVar(&depth, "depth", defaultMailboxDepth, "mailbox buffer size, negative for unbounded")
	cmd.Flags().BoolVar(&mermaid, "mermaid", false, "print the final diagram with the current branch highlighted")

	return cmd
}

func runStep(ctx context.Context, a *app, mailbox *statemachine.Mailbox, step string) error {
	name, raw, _ := strings.Cut(step, "=")
	payload := cli.ParsePayload(strings.ReplaceAll(raw, ",", " "))

	return mailbox.Do(ctx, func(ctx context.Context, au *statemachine.Automaton) error {
		before := len(au.History())

		if err := au.DoTransition(ctx, name, payload...); err != nil {
			return err
		}

		for au.IsPaused() {
			if err := au.Proceed(ctx); err != nil {
				return err
			}
		}

		outcome := ""
		if records := au.History(); len(records) > before {
			outcome = records[len(records)-1].Outcome
		}

		_, _ = fmt.Fprintf(a.stdout, "%-24s %s (%s)\n", name, strings.Join(au.GetCurrentBranch(), " > "), outcome)

		return nil
	})
}

func newReplCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "repl <config.yaml>",
		Short: "Drive a state machine interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			automaton, err := buildAutomaton(args[0])
			if err != nil {
				return err
			}
			defer automaton.Destroy()

			return cli.NewSession(automaton, a.prompter, a.stdout).Run(cmd.Context())
		},
	}
}

func parseFile(path string) (*statemachine.Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return statemachine.ParseConfig(data)
}

func buildAutomaton(path string) (*statemachine.Automaton, error) {
	config, err := statemachine.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return statemachine.NewFromConfig(config, standInRegistry(config),
		statemachine.WithLogger(statemachine.NewDefaultLogger()))
}

// standInRegistry extends the built-ins with an entry for every name the
// definition references but the built-ins lack. Stand-in guards allow, stand-in
// handlers log and stand-in resolvers read the target from the first payload value.
func standInRegistry(config *statemachine.Config) *statemachine.Registry {
	registry := statemachine.NewRegistry()
	firstArg, _ := registry.Resolver(statemachine.ResolverFirst)

	for _, state := range config.States {
		for _, name := range append(append([]string{}, state.Guards.Entry...), state.Guards.Exit...) {
			if !registry.HasGuard(name) {
				registry.RegisterGuard(name, standInGuard(name))
			}
		}

		for _, names := range state.Listeners {
			for _, name := range names {
				if !registry.HasHandler(name) {
					registry.RegisterHandler(name, standInHandler(name))
				}
			}
		}

		for _, transition := range state.Transitions {
			if transition.Resolver != "" && !registry.HasResolver(transition.Resolver) {
				registry.RegisterResolver(transition.Resolver, firstArg)
			}
		}
	}

	return registry
}

func standInGuard(name string) statemachine.Guard {
	return func(ctx context.Context, event statemachine.StateEvent, _ statemachine.Payload) bool {
		logger.Get(ctx).Debug("stand-in guard allowed", "guard", name, "event", event.String())

		return true
	}
}

func standInHandler(name string) statemachine.Handler {
	return func(ctx context.Context, event statemachine.StateEvent, payload statemachine.Payload) {
		logger.Get(ctx).Info("stand-in handler called", "handler", name, "event", event.String(), "payload", []any(payload))
	}
}
