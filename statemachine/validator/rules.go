//nolint:lll // Long validation messages
package validator

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/amp-labs/amp-hfsm/statemachine"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule defines a validation rule that can check a config for specific issues.
type Rule interface {
	Name() string
	Severity() Severity
	Check(config *statemachine.Config) RuleResult
}

// DefaultRules returns the standard set of validation rules followed by the registered ones.
func DefaultRules() []Rule {
	rules := []Rule{
		&stateNameRule{},
		&missingParentRule{},
		&parentCycleRule{},
		&transitionRule{},
		&duplicateTransitionRule{},
		&initialStateRule{},
		&unreachableStateRule{},
		&deadEndRule{},
		&namingConventionRule{},
	}

	return append(rules, RegisteredRules...)
}

// RegisteredRules stores custom validation rules.
var RegisteredRules []Rule //nolint:gochecknoglobals

// RegisterRule adds a custom validation rule.
func RegisterRule(rule Rule) {
	RegisteredRules = append(RegisteredRules, rule)
}

// definition indexes a config by state name and parent.
type definition struct {
	states   map[string]*statemachine.StateConfig
	children map[string][]string
	initial  map[string][]string
}

func index(config *statemachine.Config) *definition {
	def := &definition{
		states:   make(map[string]*statemachine.StateConfig, len(config.States)),
		children: make(map[string][]string),
		initial:  make(map[string][]string),
	}

	for i := range config.States {
		state := &config.States[i]
		if state.Name == "" {
			continue
		}

		if _, exists := def.states[state.Name]; exists {
			continue
		}

		def.states[state.Name] = state
		parent := parentOf(*state)
		def.children[parent] = append(def.children[parent], state.Name)

		if state.IsInitial {
			def.initial[parent] = append(def.initial[parent], state.Name)
		}
	}

	return def
}

// parentOf returns the parent of a state, "" for top-level states.
func parentOf(state statemachine.StateConfig) string {
	parent := state.ParentName()
	if parent == statemachine.RootStateName {
		return ""
	}

	return parent
}

func (d *definition) parent(name string) string {
	state, ok := d.states[name]
	if !ok {
		return ""
	}

	return parentOf(*state)
}

// initialChild returns the child entered by default, the last one marked initial.
func (d *definition) initialChild(name string) string {
	initial := d.initial[name]
	if len(initial) == 0 {
		return ""
	}

	return initial[len(initial)-1]
}

func (d *definition) exists(name string) bool {
	_, ok := d.states[name]

	return ok || name == statemachine.RootStateName
}

func locate(state *statemachine.StateConfig) Location {
	return Location{State: state.Name, Line: state.Line}
}

// stateNameRule checks that every state has a unique, non reserved name.
type stateNameRule struct{}

func (r *stateNameRule) Name() string {
	return "StateNames"
}

func (r *stateNameRule) Severity() Severity {
	return SeverityError
}

func (r *stateNameRule) Check(config *statemachine.Config) RuleResult {
	var errors []ValidationError

	if len(config.States) == 0 {
		errors = append(errors, ValidationError{
			Code:    "NO_STATES",
			Message: "The definition declares no states",
		})
	}

	seen := make(map[string]bool, len(config.States))

	for i := range config.States {
		state := &config.States[i]

		switch {
		case state.Name == "":
			errors = append(errors, ValidationError{
				Code:     "EMPTY_STATE_NAME",
				Message:  "A state has no name",
				Location: locate(state),
			})
		case state.Name == statemachine.RootStateName:
			errors = append(errors, ValidationError{
				Code:     "RESERVED_STATE_NAME",
				Message:  fmt.Sprintf("State name '%s' is reserved for the top of the tree", state.Name),
				Location: locate(state),
				Fix:      RenameState(state.Name, "root_state"),
			})
		case seen[state.Name]:
			errors = append(errors, ValidationError{
				Code:     "DUPLICATE_STATE",
				Message:  fmt.Sprintf("State '%s' is declared more than once; only the first declaration is used", state.Name),
				Location: locate(state),
			})
		}

		seen[state.Name] = true
	}

	return RuleResult{Errors: errors}
}

// missingParentRule checks that every parent, explicit or implied by the name, is declared.
type missingParentRule struct{}

func (r *missingParentRule) Name() string {
	return "MissingParent"
}

func (r *missingParentRule) Severity() Severity {
	return SeverityError
}

func (r *missingParentRule) Check(config *statemachine.Config) RuleResult {
	var errors []ValidationError

	def := index(config)
	reported := make(map[string]bool)

	for i := range config.States {
		state := &config.States[i]
		parent := parentOf(*state)

		if state.Name == "" || parent == "" || def.exists(parent) {
			continue
		}

		var fix *Fix
		if !reported[parent] {
			fix = AddState(parent)
			reported[parent] = true
		}

		errors = append(errors, ValidationError{
			Code:     "MISSING_PARENT",
			Message:  fmt.Sprintf("State '%s' hangs under '%s', which is not declared", state.Name, parent),
			Location: locate(state),
			Fix:      fix,
		})
	}

	return RuleResult{Errors: errors}
}

// parentCycleRule checks that following parents always ends at the top of the tree.
type parentCycleRule struct{}

func (r *parentCycleRule) Name() string {
	return "ParentCycle"
}

func (r *parentCycleRule) Severity() Severity {
	return SeverityError
}

func (r *parentCycleRule) Check(config *statemachine.Config) RuleResult {
	var errors []ValidationError

	def := index(config)
	inCycle := make(map[string]bool)

	for i := range config.States {
		state := &config.States[i]
		if state.Name == "" || inCycle[state.Name] {
			continue
		}

		var chain []string

		seen := make(map[string]bool)

		for cur := state.Name; cur != "" && def.exists(cur) && !inCycle[cur]; cur = def.parent(cur) {
			if seen[cur] {
				start := slices.Index(chain, cur)
				loop := chain[start:]

				for _, name := range loop {
					inCycle[name] = true
				}

				errors = append(errors, ValidationError{
					Code:     "PARENT_CYCLE",
					Message:  fmt.Sprintf("Parent chain loops: %s -> %s", strings.Join(loop, " -> "), cur),
					Location: locate(def.states[cur]),
				})

				break
			}

			seen[cur] = true
			chain = append(chain, cur)
		}
	}

	return RuleResult{Errors: errors}
}

// transitionRule checks that every transition has a name and exactly one existing target.
type transitionRule struct{}

func (r *transitionRule) Name() string {
	return "Transitions"
}

func (r *transitionRule) Severity() Severity {
	return SeverityError
}

func (r *transitionRule) Check(config *statemachine.Config) RuleResult {
	var errors []ValidationError

	def := index(config)

	for i := range config.States {
		state := &config.States[i]

		for _, transition := range state.Transitions {
			loc := locate(state)
			loc.Transition = transition.Name

			switch {
			case transition.Name == "":
				errors = append(errors, ValidationError{
					Code:     "INVALID_TRANSITION",
					Message:  fmt.Sprintf("State '%s' has a transition without a name", state.Name),
					Location: loc,
					Fix:      RemoveTransition(state.Name, ""),
				})
			case transition.Target != "" && transition.Resolver != "":
				errors = append(errors, ValidationError{
					Code:     "INVALID_TRANSITION",
					Message:  fmt.Sprintf("Transition '%s' of state '%s' sets both a target and a resolver", transition.Name, state.Name),
					Location: loc,
				})
			case transition.Target == "" && transition.Resolver == "":
				errors = append(errors, ValidationError{
					Code:     "INVALID_TRANSITION",
					Message:  fmt.Sprintf("Transition '%s' of state '%s' has no target", transition.Name, state.Name),
					Location: loc,
					Fix:      RemoveTransition(state.Name, transition.Name),
				})
			case transition.Target != "" && !def.exists(transition.Target):
				errors = append(errors, ValidationError{
					Code:     "DANGLING_TARGET",
					Message:  fmt.Sprintf("Transition '%s' of state '%s' targets '%s', which is not declared", transition.Name, state.Name, transition.Target),
					Location: loc,
					Fix:      RemoveTransition(state.Name, transition.Name),
				})
			}
		}
	}

	return RuleResult{Errors: errors}
}

// duplicateTransitionRule warns about transitions declared twice on one state; the last one wins.
type duplicateTransitionRule struct{}

func (r *duplicateTransitionRule) Name() string {
	return "DuplicateTransition"
}

func (r *duplicateTransitionRule) Severity() Severity {
	return SeverityWarning
}

func (r *duplicateTransitionRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	for i := range config.States {
		state := &config.States[i]
		count := make(map[string]int, len(state.Transitions))

		for _, transition := range state.Transitions {
			count[transition.Name]++

			if transition.Name == "" || count[transition.Name] != 2 {
				continue
			}

			loc := locate(state)
			loc.Transition = transition.Name

			warnings = append(warnings, ValidationWarning{
				Code:     "DUPLICATE_TRANSITION",
				Message:  fmt.Sprintf("Transition '%s' of state '%s' is declared more than once; the last declaration wins", transition.Name, state.Name),
				Location: loc,
				Fix:      RemoveDuplicateTransition(state.Name, transition.Name),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// initialStateRule checks the default descent: the machine needs a top-level
// initial state, and each parent should mark at most one child initial.
type initialStateRule struct{}

func (r *initialStateRule) Name() string {
	return "InitialState"
}

func (r *initialStateRule) Severity() Severity {
	return SeverityWarning
}

func (r *initialStateRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	def := index(config)

	if top := def.children[""]; len(top) > 0 && len(def.initial[""]) == 0 {
		warnings = append(warnings, ValidationWarning{
			Code:     "NO_INITIAL_STATE",
			Message:  "No top-level state is marked initial; the machine starts with an empty branch",
			Location: locate(def.states[top[0]]),
			Fix:      MarkInitial(top[0]),
		})
	}

	r.checkParent(def, "", &warnings)

	for i := range config.States {
		if name := config.States[i].Name; name != "" && def.states[name] == &config.States[i] {
			r.checkParent(def, name, &warnings)
		}
	}

	return RuleResult{Warnings: warnings}
}

func (r *initialStateRule) checkParent(def *definition, parent string, warnings *[]ValidationWarning) {
	initial := def.initial[parent]
	if len(initial) < 2 {
		return
	}

	label := parent
	if label == "" {
		label = statemachine.RootStateName
	}

	winner := initial[len(initial)-1]

	*warnings = append(*warnings, ValidationWarning{
		Code:     "MULTIPLE_INITIAL",
		Message:  fmt.Sprintf("'%s' has %d initial children (%s); '%s' is used", label, len(initial), strings.Join(initial, ", "), winner),
		Location: locate(def.states[winner]),
		Fix:      MarkInitial(winner),
	})
}

// unreachableStateRule checks for states that can never become active, starting
// from the initial branch and following every literal transition. Definitions
// with resolver targets on a reachable state are skipped: their targets are only
// known at run time.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string {
	return "UnreachableState"
}

func (r *unreachableStateRule) Severity() Severity {
	return SeverityWarning
}

func (r *unreachableStateRule) Check(config *statemachine.Config) RuleResult {
	def := index(config)

	start := def.initialChild("")
	if start == "" {
		return RuleResult{}
	}

	reached := make(map[string]bool)

	var queue []string

	mark := func(name string) {
		if _, ok := def.states[name]; !ok || reached[name] {
			return
		}

		reached[name] = true
		queue = append(queue, name)
	}

	// Entering a state activates its ancestors and its initial descendants.
	enter := func(name string) {
		seen := make(map[string]bool)

		for cur := name; cur != "" && !seen[cur]; cur = def.parent(cur) {
			seen[cur] = true
			mark(cur)
		}

		for cur := def.initialChild(name); cur != "" && !seen[cur]; cur = def.initialChild(cur) {
			seen[cur] = true
			mark(cur)
		}
	}

	enter(start)

	for len(queue) > 0 {
		current := def.states[queue[0]]
		queue = queue[1:]

		for _, transition := range current.Transitions {
			if transition.Resolver != "" {
				return RuleResult{}
			}

			enter(transition.Target)
		}
	}

	var warnings []ValidationWarning

	for i := range config.States {
		state := &config.States[i]
		if state.Name == "" || reached[state.Name] {
			continue
		}

		warnings = append(warnings, ValidationWarning{
			Code:     "UNREACHABLE_STATE",
			Message:  fmt.Sprintf("State '%s' cannot be reached from the initial branch", state.Name),
			Location: locate(state),
			Fix:      RemoveState(state.Name),
		})
	}

	return RuleResult{Warnings: warnings}
}

// deadEndRule warns about leaf states that neither they nor their ancestors can leave.
type deadEndRule struct{}

func (r *deadEndRule) Name() string {
	return "DeadEnd"
}

func (r *deadEndRule) Severity() Severity {
	return SeverityWarning
}

func (r *deadEndRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	if len(config.States) < 2 {
		return RuleResult{}
	}

	def := index(config)

	for i := range config.States {
		state := &config.States[i]
		if state.Name == "" || len(def.children[state.Name]) > 0 {
			continue
		}

		leaves := false
		seen := make(map[string]bool)

		for cur := state.Name; cur != "" && !seen[cur]; cur = def.parent(cur) {
			seen[cur] = true

			if s, ok := def.states[cur]; ok && len(s.Transitions) > 0 {
				leaves = true

				break
			}
		}

		if !leaves {
			warnings = append(warnings, ValidationWarning{
				Code:     "DEAD_END",
				Message:  fmt.Sprintf("No transition leads out of state '%s'", state.Name),
				Location: locate(state),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// namingConventionRule warns about names that are hard to use from code and diagrams.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule) Check(config *statemachine.Config) RuleResult {
	var warnings []ValidationWarning

	for i := range config.States {
		state := &config.States[i]

		if state.Name != "" && !isWellFormedPath(state.Name) {
			warnings = append(warnings, ValidationWarning{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("State '%s' should be '/' separated segments without spaces (suggested: '%s')", state.Name, normalizePath(state.Name)),
				Location: locate(state),
				Fix:      RenameState(state.Name, normalizePath(state.Name)),
			})
		}

		for _, transition := range state.Transitions {
			if transition.Name == "" || isWellFormedSegment(transition.Name) {
				continue
			}

			loc := locate(state)
			loc.Transition = transition.Name

			warnings = append(warnings, ValidationWarning{
				Code:     "NAMING_CONVENTION",
				Message:  fmt.Sprintf("Transition '%s' of state '%s' should not contain spaces or '/'", transition.Name, state.Name),
				Location: loc,
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// referenceRule checks guard, handler and resolver names against a registry.
type referenceRule struct {
	registry *statemachine.Registry
}

// ReferenceRule returns a rule reporting names missing from the registry. A nil
// registry checks against the built-in entries.
func ReferenceRule(registry *statemachine.Registry) Rule {
	if registry == nil {
		registry = statemachine.NewRegistry()
	}

	return &referenceRule{registry: registry}
}

func (r *referenceRule) Name() string {
	return "UnknownReference"
}

func (r *referenceRule) Severity() Severity {
	return SeverityError
}

func (r *referenceRule) Check(config *statemachine.Config) RuleResult {
	var errors []ValidationError

	for i := range config.States {
		state := &config.States[i]

		for _, name := range slices.Concat(state.Guards.Entry, state.Guards.Exit) {
			if !r.registry.HasGuard(name) {
				errors = append(errors, ValidationError{
					Code:     "UNKNOWN_GUARD",
					Message:  fmt.Sprintf("State '%s' uses guard '%s', which is not registered", state.Name, name),
					Location: locate(state),
				})
			}
		}

		for _, kind := range statemachine.EventKinds() {
			for _, name := range state.Listeners[kind] {
				if !r.registry.HasHandler(name) {
					errors = append(errors, ValidationError{
						Code:     "UNKNOWN_HANDLER",
						Message:  fmt.Sprintf("State '%s' listens to '%s' with handler '%s', which is not registered", state.Name, kind, name),
						Location: locate(state),
					})
				}
			}
		}

		for _, transition := range state.Transitions {
			if transition.Resolver != "" && !r.registry.HasResolver(transition.Resolver) {
				loc := locate(state)
				loc.Transition = transition.Name

				errors = append(errors, ValidationError{
					Code:     "UNKNOWN_RESOLVER",
					Message:  fmt.Sprintf("Transition '%s' of state '%s' uses resolver '%s', which is not registered", transition.Name, state.Name, transition.Resolver),
					Location: loc,
				})
			}
		}
	}

	return RuleResult{Errors: errors}
}

// Helper functions

func isWellFormedSegment(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r == '/' || unicode.IsSpace(r) {
			return false
		}
	}

	return true
}

func isWellFormedPath(s string) bool {
	for _, segment := range strings.Split(s, "/") {
		if !isWellFormedSegment(segment) {
			return false
		}
	}

	return true
}

func normalizePath(s string) string {
	var segments []string

	for _, segment := range strings.Split(s, "/") {
		segment = strings.Join(strings.Fields(segment), "_")
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return strings.Join(segments, "/")
}
