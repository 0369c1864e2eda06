// Package visualizer generates Mermaid state diagrams from machine definitions.
// Nested states are drawn as composite states, and the current branch of a
// running automaton can be highlighted.
//
//nolint:gosec,varnamelen // File paths from config; short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"unicode"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Visualizer errors.
var (
	ErrConfigNil = errors.New("config cannot be nil")
	ErrNoStates  = errors.New("config must declare at least one state")
)

// DynamicTarget is the resolver name used for transitions whose target is
// computed at run time and whose resolver has no registered name.
const DynamicTarget = "<dynamic>"

// Mermaid keywords that cannot be used as state ids.
var reservedIDs = map[string]bool{ //nolint:gochecknoglobals
	"end":       true,
	"state":     true,
	"class":     true,
	"classDef":  true,
	"note":      true,
	"direction": true,
}

// GenerateMermaid converts a Config to a Mermaid state diagram.
func GenerateMermaid(config *statemachine.Config) (string, error) {
	return GenerateMermaidWithOptions(config, DefaultOptions())
}

// GenerateMermaidFromFile loads a config from a file and generates a Mermaid diagram.
func GenerateMermaidFromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	config, err := statemachine.ParseConfig(data)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}

	return GenerateMermaid(config)
}

// GenerateMermaidFromAutomaton draws a running automaton. Unless the options
// name a path, the current branch is highlighted.
func GenerateMermaidFromAutomaton(a *statemachine.Automaton, opts Options) (string, error) {
	if len(opts.HighlightPath) == 0 {
		opts.HighlightPath = a.GetCurrentBranch()
	}

	return GenerateMermaidWithOptions(Snapshot(a), opts)
}

// Snapshot describes the states and transitions of a running automaton as a
// Config. Guards and listeners are functions and are left out; dynamic
// targets are reported with the DynamicTarget resolver.
func Snapshot(a *statemachine.Automaton) *statemachine.Config {
	config := &statemachine.Config{Name: a.Name()}

	var walk func(parent string)

	walk = func(parent string) {
		for _, state := range a.Children(parent) {
			sc := statemachine.StateConfig{Name: state.Name(), IsInitial: state.IsInitial()}

			implied := statemachine.StateConfig{Name: state.Name()}.ParentName()

			switch {
			case parent == "" && implied != "":
				sc.Parent = statemachine.RootStateName
			case parent != "" && implied != parent:
				sc.Parent = parent
			}

			for _, name := range state.TransitionNames() {
				target, _ := state.GetTransition(name)

				tc := statemachine.TransitionConfig{Name: name, Target: target.Name()}
				if target.IsDynamic() {
					tc.Resolver = DynamicTarget
				}

				sc.Transitions = append(sc.Transitions, tc)
			}

			config.States = append(config.States, sc)

			walk(state.Name())
		}
	}

	walk("")

	return config
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
func GenerateMermaidWithOptions(config *statemachine.Config, opts Options) (string, error) {
	if config == nil {
		return "", ErrConfigNil
	}

	if len(config.States) == 0 {
		return "", ErrNoStates
	}

	d := newDiagram(config, opts)

	return d.render(), nil
}

type diagram struct {
	opts     Options
	states   []*statemachine.StateConfig
	ids      map[string]string
	children map[string][]*statemachine.StateConfig
	visited  map[string]bool
	sb       strings.Builder
}

func newDiagram(config *statemachine.Config, opts Options) *diagram {
	d := &diagram{
		opts:     opts,
		ids:      make(map[string]string, len(config.States)),
		children: make(map[string][]*statemachine.StateConfig),
		visited:  make(map[string]bool, len(config.States)),
	}

	used := make(map[string]bool, len(config.States))

	for i := range config.States {
		state := &config.States[i]
		if state.Name == "" || d.ids[state.Name] != "" {
			continue
		}

		id := sanitizeID(state.Name)
		for used[id] {
			id += "_"
		}

		used[id] = true
		d.ids[state.Name] = id
		d.states = append(d.states, state)
	}

	for _, state := range d.states {
		parent := state.ParentName()
		if parent == statemachine.RootStateName || d.ids[parent] == "" {
			// Orphans are drawn at the top level.
			parent = ""
		}

		d.children[parent] = append(d.children[parent], state)
	}

	return d
}

func (d *diagram) render() string {
	sb := &d.sb

	sb.WriteString("```mermaid\n")

	if d.opts.Theme != "" && d.opts.Theme != "default" {
		fmt.Fprintf(sb, "%%%%{init: {'theme': '%s'}}%%%%\n", d.opts.Theme)
	}

	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(sb, "    direction %s\n", d.opts.direction())

	if initial := d.initialChild(""); initial != nil {
		fmt.Fprintf(sb, "    [*] --> %s\n", d.id(initial.Name))
	}

	for _, state := range d.children[""] {
		d.writeState(state, 1)
	}

	// States caught in a parent cycle are never reached from the top.
	for _, state := range d.states {
		if !d.visited[state.Name] {
			d.writeState(state, 1)
		}
	}

	for _, state := range d.states {
		d.writeTransitions(state)
	}

	d.writeClasses()

	sb.WriteString("```\n")

	return sb.String()
}

func (d *diagram) writeState(state *statemachine.StateConfig, depth int) {
	d.visited[state.Name] = true

	indent := strings.Repeat("    ", depth)
	id := d.id(state.Name)

	fmt.Fprintf(&d.sb, "%sstate \"%s\" as %s\n", indent, label(state.Name), id)

	if d.opts.ShowListeners {
		if desc := describe(state); desc != "" {
			fmt.Fprintf(&d.sb, "%s%s : %s\n", indent, id, desc)
		}
	}

	var kids []*statemachine.StateConfig

	for _, child := range d.children[state.Name] {
		if !d.visited[child.Name] {
			kids = append(kids, child)
		}
	}

	if len(kids) == 0 {
		return
	}

	fmt.Fprintf(&d.sb, "%sstate %s {\n", indent, id)

	if initial := d.initialChild(state.Name); initial != nil && slices.Contains(kids, initial) {
		fmt.Fprintf(&d.sb, "%s    [*] --> %s\n", indent, d.id(initial.Name))
	}

	for _, child := range kids {
		d.writeState(child, depth+1)
	}

	fmt.Fprintf(&d.sb, "%s}\n", indent)
}

func (d *diagram) writeTransitions(state *statemachine.StateConfig) {
	from := d.id(state.Name)
	seen := make(map[string]bool, len(state.Transitions))

	for _, declared := range state.Transitions {
		if declared.Name == "" || seen[declared.Name] {
			continue
		}

		seen[declared.Name] = true

		// The last declaration of a name is the one in effect.
		transition, _ := state.Transition(declared.Name)

		text := ""
		if d.opts.ShowTransitionNames {
			text = " : " + transition.Name
		}

		switch {
		case transition.Resolver != "":
			choice := from + "__" + sanitizeID(transition.Name)
			fmt.Fprintf(&d.sb, "    state %s <<choice>>\n", choice)

			if d.opts.ShowTransitionNames {
				text = fmt.Sprintf(" : %s (%s)", transition.Name, transition.Resolver)
			}

			fmt.Fprintf(&d.sb, "    %s --> %s%s\n", from, choice, text)
		case transition.Target != "":
			fmt.Fprintf(&d.sb, "    %s --> %s%s\n", from, d.id(transition.Target), text)
		}
	}
}

func (d *diagram) writeClasses() {
	highlighted := make(map[string]bool, len(d.opts.HighlightPath))
	for _, name := range d.opts.HighlightPath {
		highlighted[name] = true
	}

	d.sb.WriteString("\n")

	// Apply styling based on guards and highlighting
	for _, state := range d.states {
		switch {
		case highlighted[state.Name]:
			fmt.Fprintf(&d.sb, "    class %s highlighted\n", d.id(state.Name))
		case len(state.Guards.Entry) > 0 || len(state.Guards.Exit) > 0:
			fmt.Fprintf(&d.sb, "    class %s guarded\n", d.id(state.Name))
		}
	}

	d.sb.WriteString("    classDef guarded fill:#e1f5ff,stroke:#01579b,stroke-width:2px\n")
	d.sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")
}

// initialChild returns the child entered by default, the last one marked initial.
func (d *diagram) initialChild(parent string) *statemachine.StateConfig {
	var initial *statemachine.StateConfig

	for _, child := range d.children[parent] {
		if child.IsInitial {
			initial = child
		}
	}

	return initial
}

func (d *diagram) id(name string) string {
	if id, ok := d.ids[name]; ok {
		return id
	}

	return sanitizeID(name)
}

// sanitizeID turns a state name into a Mermaid identifier: path separators
// become "__" and other punctuation becomes "_".
func sanitizeID(name string) string {
	var sb strings.Builder

	for _, r := range strings.ReplaceAll(name, "/", "__") {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteRune('_')
		}
	}

	id := sb.String()
	if id == "" || reservedIDs[id] || unicode.IsDigit(rune(id[0])) {
		id = "s_" + id
	}

	return id
}

// label is the last path segment of a state name.
func label(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}

	return name
}

func describe(state *statemachine.StateConfig) string {
	var parts []string

	if len(state.Guards.Entry) > 0 {
		parts = append(parts, fmt.Sprintf("entry [%s]", strings.Join(state.Guards.Entry, ", ")))
	}

	if len(state.Guards.Exit) > 0 {
		parts = append(parts, fmt.Sprintf("exit [%s]", strings.Join(state.Guards.Exit, ", ")))
	}

	for _, kind := range statemachine.EventKinds() {
		if names := state.Listeners[kind]; len(names) > 0 {
			parts = append(parts, fmt.Sprintf("%s [%s]", kind, strings.Join(names, ", ")))
		}
	}

	return strings.Join(parts, "\\n")
}
