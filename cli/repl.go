package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/amp-labs/amp-hfsm/logger"
	"github.com/amp-labs/amp-hfsm/statemachine"
	"github.com/amp-labs/amp-hfsm/statemachine/visualizer"
	"github.com/manifoldco/promptui"
)

// Menu entries offered next to the transitions of the current branch.
const (
	ChoiceProceed = "[Proceed]"
	ChoiceHistory = "[History]"
	ChoiceDiagram = "[Diagram]"
	ChoiceQuit    = "[Quit]"
)

// Prompter asks the user for input. The promptui implementation is returned by
// NewPrompter, tests script their own.
type Prompter interface {
	Select(label string, choices ...string) (string, error)
	Input(label string) (string, error)
}

type promptuiPrompter struct{}

// NewPrompter returns a Prompter reading from the terminal.
func NewPrompter() Prompter {
	return promptuiPrompter{}
}

func (promptuiPrompter) Select(label string, choices ...string) (string, error) {
	return Select(label, choices...)
}

func (promptuiPrompter) Input(label string) (string, error) {
	return PromptString(label)
}

// Session drives an automaton interactively until the user quits.
type Session struct {
	automaton *statemachine.Automaton
	prompter  Prompter
	out       io.Writer
}

// NewSession returns a Session driving automaton. Menus and payload questions go
// through prompter, banners and reports are written to out.
func NewSession(automaton *statemachine.Automaton, prompter Prompter, out io.Writer) *Session {
	return &Session{automaton: automaton, prompter: prompter, out: out}
}

// Run loops until the user picks [Quit], interrupts the prompt or ctx ends.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(s.out, BannerAutoWidth(s.status(), AlignCenter))

		choice, err := s.prompter.Select("Transition", s.Choices()...)
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}

			return err
		}

		switch choice {
		case ChoiceQuit:
			return nil
		case ChoiceProceed:
			s.report(s.automaton.Proceed(ctx))
		case ChoiceHistory:
			s.printHistory()
		case ChoiceDiagram:
			s.printDiagram()
		default:
			if err := s.fire(ctx, choice); err != nil {
				return err
			}
		}
	}
}

// Choices lists the transitions reachable from the root and the current branch,
// sorted, followed by the session commands.
func (s *Session) Choices() []string {
	var names []string

	for _, state := range s.activeStates() {
		names = append(names, state.TransitionNames()...)
	}

	slices.Sort(names)
	names = slices.Compact(names)

	if s.automaton.IsPaused() {
		names = append(names, ChoiceProceed)
	}

	return append(names, ChoiceHistory, ChoiceDiagram, ChoiceQuit)
}

func (s *Session) status() string {
	branch := strings.Join(s.automaton.GetCurrentBranch(), " › ")
	if branch == "" {
		branch = "(empty)"
	}

	if s.automaton.IsPaused() {
		branch += " [paused]"
	}

	return fmt.Sprintf("%s: %s", s.automaton.Name(), branch)
}

func (s *Session) fire(ctx context.Context, name string) error {
	var payload []any

	if s.isDynamic(name) {
		raw, err := s.prompter.Input("Payload")
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				return nil
			}

			return err
		}

		payload = ParsePayload(raw)
	}

	before := len(s.automaton.History())

	s.report(s.automaton.DoTransition(ctx, name, payload...))

	records := s.automaton.History()
	if len(records) > before {
		last := records[len(records)-1]
		if !last.Completed() {
			_, _ = fmt.Fprintf(s.out, "%s: %s\n", name, last.Outcome)
		}
	}

	return nil
}

// isDynamic reports whether the transition the engine would pick resolves its
// target from the payload.
func (s *Session) isDynamic(name string) bool {
	for _, state := range slices.Backward(s.activeStates()) {
		if target, ok := state.GetTransition(name); ok {
			return target.IsDynamic()
		}
	}

	return false
}

// activeStates returns the states searched for a transition, root first and
// leaf last.
func (s *Session) activeStates() []*statemachine.State {
	states := s.automaton.CurrentBranchStates()

	if root := s.automaton.GetRootState(); root != nil {
		states = append([]*statemachine.State{root}, states...)
	}

	return states
}

func (s *Session) report(err error) {
	if err == nil {
		return
	}

	logger.Get().Debug("session command failed", "error", err)

	_, _ = fmt.Fprintf(s.out, "error: %v\n", err)
}

func (s *Session) printHistory() {
	records := s.automaton.History()
	if len(records) == 0 {
		_, _ = fmt.Fprintln(s.out, "no transitions yet")

		return
	}

	_, _ = fmt.Fprint(s.out, DividerAutoWidth())

	for i, record := range records {
		_, _ = fmt.Fprintf(s.out, "%3d. %s: %s -> %s (%s)\n",
			i+1, record.Transition, record.From, record.To, record.Outcome)
	}
}

func (s *Session) printDiagram() {
	diagram, err := visualizer.GenerateMermaidFromAutomaton(s.automaton, visualizer.DefaultOptions())
	if err != nil {
		s.report(err)

		return
	}

	_, _ = fmt.Fprintln(s.out, diagram)
}

// ParsePayload splits raw on whitespace. Integers and the literals true and
// false are converted, everything else stays a string.
func ParsePayload(raw string) []any {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}

	payload := make([]any, 0, len(fields))

	for _, field := range fields {
		if n, err := strconv.Atoi(field); err == nil {
			payload = append(payload, n)
		} else if field == "true" || field == "false" {
			payload = append(payload, field == "true")
		} else {
			payload = append(payload, field)
		}
	}

	return payload
}
