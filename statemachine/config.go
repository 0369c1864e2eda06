package statemachine

import (
	"fmt"
	"io/fs"
	"os"
	"strings"

	errs "github.com/amp-labs/amp-hfsm/errors"
	"gopkg.in/yaml.v3"
)

// Reserved keys of a state definition. Every other key is a loose transition.
const (
	keyIsInitial   = "isInitial"
	keyParent      = "parent"
	keyGuards      = "guards"
	keyListeners   = "listeners"
	keyTransitions = "transitions"
	keyName        = "name"
)

// ConfigLoader is an interface for loading configurations by name.
// Applications can implement this to provide embedded or custom config loading.
type ConfigLoader interface {
	LoadByName(name string) ([]byte, error)
	ListAvailable() []string
}

// defaultConfigLoader is the global config loader used by LoadConfig.
var defaultConfigLoader ConfigLoader //nolint:gochecknoglobals

// SetConfigLoader sets the default config loader for name-based loading.
func SetConfigLoader(loader ConfigLoader) {
	defaultConfigLoader = loader
}

// Config is a declarative machine definition. States keep their declaration order.
type Config struct {
	Name   string
	States []StateConfig
}

// StateConfig defines one state.
type StateConfig struct {
	Name        string
	Parent      string
	IsInitial   bool
	Guards      GuardsConfig
	Listeners   map[EventKind][]string
	Transitions []TransitionConfig

	// Line is the source line of the definition, zero when built in code.
	Line int
}

// GuardsConfig lists guard names per phase.
type GuardsConfig struct {
	Entry []string
	Exit  []string
}

// TransitionConfig is one outgoing edge. Exactly one of Target and Resolver is set.
type TransitionConfig struct {
	Name     string
	Target   string
	Resolver string
}

// ParentName returns the explicit parent, or the one implied by the name.
func (s StateConfig) ParentName() string {
	if s.Parent != "" {
		return s.Parent
	}

	return implicitParent(s.Name)
}

// Transition returns the named transition.
func (s StateConfig) Transition(name string) (TransitionConfig, bool) {
	for i := len(s.Transitions) - 1; i >= 0; i-- {
		if s.Transitions[i].Name == name {
			return s.Transitions[i], true
		}
	}

	return TransitionConfig{}, false
}

// State returns the named state definition.
func (c *Config) State(name string) (*StateConfig, bool) {
	for i := range c.States {
		if c.States[i].Name == name {
			return &c.States[i], true
		}
	}

	return nil, false
}

// LoadConfig loads a machine definition by path or name.
// Supports two modes:
//   - Path mode: a value containing '/', '\', or ending in '.yaml'/'.yml' is read from the filesystem.
//   - Name mode: a bare name is loaded through the registered ConfigLoader.
func LoadConfig(pathOrName string) (*Config, error) {
	lower := strings.ToLower(pathOrName)

	isPath := strings.Contains(pathOrName, "/") ||
		strings.Contains(pathOrName, `\`) ||
		strings.HasSuffix(lower, ".yaml") ||
		strings.HasSuffix(lower, ".yml")

	if isPath {
		data, err := os.ReadFile(pathOrName) //nolint:gosec // Intentional path-based loading
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", pathOrName, err)
		}

		return LoadConfigFromBytes(data)
	}

	if defaultConfigLoader == nil {
		return nil, ErrNoConfigLoader
	}

	data, err := defaultConfigLoader.LoadByName(pathOrName)
	if err != nil {
		available := defaultConfigLoader.ListAvailable()

		return nil, fmt.Errorf("failed to load config %q (available: %v): %w", pathOrName, available, err)
	}

	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes parses and validates a YAML definition.
func LoadConfigFromBytes(data []byte) (*Config, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// ParseConfig parses a YAML definition without validating it.
func ParseConfig(data []byte) (*Config, error) {
	var config Config

	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return &config, nil
}

// LoadConfigFromFS loads a configuration from an embedded filesystem.
func LoadConfigFromFS(fsys fs.FS, path string) (*Config, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config from FS: %w", err)
	}

	return LoadConfigFromBytes(data)
}

// Validate returns every structural problem of the definition joined together.
func (c *Config) Validate() error {
	var collected errs.Collection

	if len(c.States) == 0 {
		collected.Add(ErrStateRequired)

		return collected.GetError()
	}

	seen := make(map[string]bool, len(c.States))

	for _, state := range c.States {
		if state.Name == "" {
			collected.Add(ErrStateNameRequired)

			continue
		}

		if state.Name == RootStateName {
			collected.Add(WrapStateError(state.Name, fmt.Errorf("%w: %q is reserved", ErrInvalidConfig, RootStateName)))
		}

		if seen[state.Name] {
			collected.Add(WrapStateError(state.Name, ErrDuplicateStateName))
		}

		seen[state.Name] = true

		for _, transition := range state.Transitions {
			collected.Add(WrapStateError(state.Name, transition.validate()))
		}
	}

	for _, state := range c.States {
		parent := state.ParentName()
		if state.Name == "" || parent == "" || parent == RootStateName {
			continue
		}

		if !seen[parent] {
			collected.Add(WrapStateError(state.Name, fmt.Errorf("%w: %s", ErrParentNotFound, parent)))
		}
	}

	if cycle := c.parentCycle(); cycle != "" {
		collected.Add(WrapStateError(cycle, fmt.Errorf("%w: parent chain loops back to the state", ErrInvalidConfig)))
	}

	return collected.GetError()
}

func (t TransitionConfig) validate() error {
	if t.Name == "" {
		return ErrInvalidTransitionName
	}

	if (t.Target == "") == (t.Resolver == "") {
		return &TransitionError{
			Transition: t.Name,
			Err:        fmt.Errorf("%w: set exactly one of target or resolver", ErrInvalidTransitionTarget),
		}
	}

	return nil
}

// parentCycle returns a state taking part in a parent loop, or "".
func (c *Config) parentCycle() string {
	parents := make(map[string]string, len(c.States))
	for _, state := range c.States {
		parents[state.Name] = state.ParentName()
	}

	for _, state := range c.States {
		visited := map[string]bool{}

		for cur := state.Name; cur != ""; cur = parents[cur] {
			if visited[cur] {
				return cur
			}

			visited[cur] = true
		}
	}

	return ""
}

// NewFromConfig builds an automaton from a definition. Guards, handlers and
// resolvers are looked up by name in the registry; a nil registry only knows the built-ins.
func NewFromConfig(config *Config, registry *Registry, opts ...Option) (*Automaton, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	automaton := New(append([]Option{WithName(config.Name)}, opts...)...)

	if err := automaton.Parse(config, registry); err != nil {
		automaton.Destroy()

		return nil, err
	}

	return automaton, nil
}

// Parse adds every state of the definition. Parents are inserted before their
// children whatever the declaration order.
func (a *Automaton) Parse(config *Config, registry *Registry) error {
	if a.destroyed {
		return ErrAutomatonDestroyed
	}

	if registry == nil {
		registry = NewRegistry()
	}

	var collected errs.Collection

	pending := make([]*State, 0, len(config.States))

	for _, sc := range config.States {
		state, err := sc.Build(registry)
		if err != nil {
			collected.Add(err)

			continue
		}

		pending = append(pending, state)
	}

	if collected.HasError() {
		return collected.GetError()
	}

	for len(pending) > 0 {
		var deferred []*State

		for _, state := range pending {
			if state.Parent() != "" && !a.HasState(state.Parent()) {
				deferred = append(deferred, state)

				continue
			}

			if err := a.AddState(state); err != nil {
				collected.Add(err)
			}
		}

		if len(deferred) == len(pending) {
			for _, state := range deferred {
				collected.Add(WrapStateError(state.Name(), fmt.Errorf("%w: %s", ErrParentNotFound, state.Parent())))
			}

			break
		}

		pending = deferred
	}

	return collected.GetError()
}

// Build turns the definition into a detached State, binding names through the registry.
func (s StateConfig) Build(registry *Registry) (*State, error) {
	if registry == nil {
		registry = NewRegistry()
	}

	var (
		collected errs.Collection
		opts      []StateOption
	)

	if s.IsInitial {
		opts = append(opts, Initial())
	}

	if s.Parent != "" {
		opts = append(opts, WithParent(s.Parent))
	}

	for phase, names := range map[EventKind][]string{PhaseEntry: s.Guards.Entry, PhaseExit: s.Guards.Exit} {
		for _, name := range names {
			guard, err := registry.Guard(name)
			if err != nil {
				collected.Add(err)

				continue
			}

			opts = append(opts, WithGuard(phase, guard))
		}
	}

	for _, kind := range allEventKinds {
		for _, name := range s.Listeners[kind] {
			handler, err := registry.Handler(name)
			if err != nil {
				collected.Add(err)

				continue
			}

			opts = append(opts, WithListener(kind, handler))
		}
	}

	for _, transition := range s.Transitions {
		target := To(transition.Target)

		if transition.Resolver != "" {
			resolver, err := registry.Resolver(transition.Resolver)
			if err != nil {
				collected.Add(err)

				continue
			}

			target = Resolve(resolver)
		}

		opts = append(opts, WithTransition(transition.Name, target))
	}

	if collected.HasError() {
		return nil, WrapStateError(s.Name, collected.GetError())
	}

	return NewState(s.Name, opts...)
}

// UnmarshalYAML decodes a definition. The states mapping keeps declaration order.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: definition must be a mapping", ErrInvalidConfig, value.Line)
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], resolveAlias(value.Content[i+1])

		switch key.Value {
		case keyName:
			if err := val.Decode(&c.Name); err != nil {
				return fmt.Errorf("%w: line %d: %w", ErrInvalidConfig, val.Line, err)
			}
		case "states":
			states, err := decodeStates(val)
			if err != nil {
				return err
			}

			c.States = states
		default:
			return fmt.Errorf("%w: line %d: unknown key %q", ErrInvalidConfig, key.Line, key.Value)
		}
	}

	return nil
}

func decodeStates(node *yaml.Node) ([]StateConfig, error) {
	switch node.Kind { //nolint:exhaustive // other kinds are rejected below
	case yaml.MappingNode:
		states := make([]StateConfig, 0, len(node.Content)/2)

		for i := 0; i+1 < len(node.Content); i += 2 {
			state, err := decodeState(node.Content[i].Value, resolveAlias(node.Content[i+1]))
			if err != nil {
				return nil, err
			}

			state.Line = node.Content[i].Line
			states = append(states, state)
		}

		return states, nil
	case yaml.SequenceNode:
		states := make([]StateConfig, 0, len(node.Content))

		for _, item := range node.Content {
			item = resolveAlias(item)

			state, err := decodeState("", item)
			if err != nil {
				return nil, err
			}

			state.Line = item.Line
			states = append(states, state)
		}

		return states, nil
	case yaml.ScalarNode:
		if isNull(node) {
			return nil, nil
		}
	}

	return nil, fmt.Errorf("%w: line %d: states must be a mapping or a list", ErrInvalidConfig, node.Line)
}

func decodeState(name string, node *yaml.Node) (StateConfig, error) {
	state := StateConfig{Name: name}

	if isNull(node) {
		return state, nil
	}

	if node.Kind != yaml.MappingNode {
		return state, fmt.Errorf("%w: line %d: state %q must be a mapping", ErrInvalidConfig, node.Line, name)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], resolveAlias(node.Content[i+1])

		var err error

		switch key.Value {
		case keyName:
			if name == "" {
				err = val.Decode(&state.Name)
			} else {
				var transition TransitionConfig

				transition, err = decodeTransition(key.Value, val)
				state.Transitions = append(state.Transitions, transition)
			}
		case keyIsInitial:
			err = val.Decode(&state.IsInitial)
		case keyParent:
			err = val.Decode(&state.Parent)
		case keyGuards:
			state.Guards, err = decodeGuards(val)
		case keyListeners:
			state.Listeners, err = decodeListeners(val)
		case keyTransitions:
			var transitions []TransitionConfig

			transitions, err = decodeTransitions(val)
			state.Transitions = append(state.Transitions, transitions...)
		default:
			var transition TransitionConfig

			transition, err = decodeTransition(key.Value, val)
			state.Transitions = append(state.Transitions, transition)
		}

		if err != nil {
			label := state.Name
			if label == "" {
				label = fmt.Sprintf("line %d", node.Line)
			}

			return state, WrapStateError(label, fmt.Errorf("key %q: %w", key.Value, err))
		}
	}

	return state, nil
}

func decodeGuards(node *yaml.Node) (GuardsConfig, error) {
	var guards GuardsConfig

	if isNull(node) {
		return guards, nil
	}

	if node.Kind != yaml.MappingNode {
		return guards, fmt.Errorf("%w: line %d: guards must map a phase to names", ErrInvalidConfig, node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		names, err := decodeNames(resolveAlias(node.Content[i+1]))
		if err != nil {
			return guards, err
		}

		switch EventKind(node.Content[i].Value) { //nolint:exhaustive // only phases are allowed
		case PhaseEntry:
			guards.Entry = append(guards.Entry, names...)
		case PhaseExit:
			guards.Exit = append(guards.Exit, names...)
		default:
			return guards, fmt.Errorf("%w: line %d: %q", ErrInvalidPhase, node.Content[i].Line, node.Content[i].Value)
		}
	}

	return guards, nil
}

func decodeListeners(node *yaml.Node) (map[EventKind][]string, error) {
	if isNull(node) {
		return nil, nil
	}

	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: listeners must map an event to names", ErrInvalidConfig, node.Line)
	}

	listeners := make(map[EventKind][]string)

	for i := 0; i+1 < len(node.Content); i += 2 {
		kind, err := ParseEventKind(node.Content[i].Value)
		if err != nil {
			return nil, err
		}

		names, err := decodeNames(resolveAlias(node.Content[i+1]))
		if err != nil {
			return nil, err
		}

		listeners[kind] = append(listeners[kind], names...)
	}

	return listeners, nil
}

func decodeTransitions(node *yaml.Node) ([]TransitionConfig, error) {
	if isNull(node) {
		return nil, nil
	}

	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: line %d: transitions must map a name to a target", ErrInvalidTransitionConfig, node.Line)
	}

	transitions := make([]TransitionConfig, 0, len(node.Content)/2)

	for i := 0; i+1 < len(node.Content); i += 2 {
		transition, err := decodeTransition(node.Content[i].Value, resolveAlias(node.Content[i+1]))
		if err != nil {
			return nil, err
		}

		transitions = append(transitions, transition)
	}

	return transitions, nil
}

// decodeTransition accepts a target name or a mapping with a target or a resolver.
func decodeTransition(name string, node *yaml.Node) (TransitionConfig, error) {
	transition := TransitionConfig{Name: name}

	switch node.Kind { //nolint:exhaustive // other kinds are rejected below
	case yaml.ScalarNode:
		if isNull(node) || node.Value == "" {
			return transition, fmt.Errorf("%w: line %d: transition %q has no target", ErrInvalidTransitionConfig, node.Line, name)
		}

		transition.Target = node.Value

		return transition, nil
	case yaml.MappingNode:
		var raw struct {
			Target   string `yaml:"target"`
			To       string `yaml:"to"`
			Resolver string `yaml:"resolver"`
		}

		if err := node.Decode(&raw); err != nil {
			return transition, fmt.Errorf("%w: line %d: %w", ErrInvalidTransitionConfig, node.Line, err)
		}

		transition.Target = raw.Target
		if transition.Target == "" {
			transition.Target = raw.To
		}

		transition.Resolver = raw.Resolver

		return transition, nil
	}

	return transition, fmt.Errorf("%w: line %d: transition %q", ErrInvalidTransitionConfig, node.Line, name)
}

func decodeNames(node *yaml.Node) ([]string, error) {
	switch node.Kind { //nolint:exhaustive // other kinds are rejected below
	case yaml.ScalarNode:
		if isNull(node) {
			return nil, nil
		}

		return []string{node.Value}, nil
	case yaml.SequenceNode:
		var names []string
		if err := node.Decode(&names); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidConfig, node.Line, err)
		}

		return names, nil
	}

	return nil, fmt.Errorf("%w: line %d: expected a name or a list of names", ErrInvalidConfig, node.Line)
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	return node
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

// MarshalYAML writes the definition in its strict form.
func (c Config) MarshalYAML() (any, error) {
	states := &yaml.Node{Kind: yaml.MappingNode}

	for _, state := range c.States {
		states.Content = append(states.Content, strNode(state.Name), state.node())
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	if c.Name != "" {
		root.Content = append(root.Content, strNode(keyName), strNode(c.Name))
	}

	root.Content = append(root.Content, strNode("states"), states)

	return root, nil
}

func (s StateConfig) node() *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode}

	if s.IsInitial {
		out.Content = append(out.Content, strNode(keyIsInitial), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: "true"})
	}

	if s.Parent != "" {
		out.Content = append(out.Content, strNode(keyParent), strNode(s.Parent))
	}

	if len(s.Guards.Entry) > 0 || len(s.Guards.Exit) > 0 {
		guards := &yaml.Node{Kind: yaml.MappingNode}

		if len(s.Guards.Entry) > 0 {
			guards.Content = append(guards.Content, strNode(string(PhaseEntry)), listNode(s.Guards.Entry))
		}

		if len(s.Guards.Exit) > 0 {
			guards.Content = append(guards.Content, strNode(string(PhaseExit)), listNode(s.Guards.Exit))
		}

		out.Content = append(out.Content, strNode(keyGuards), guards)
	}

	if len(s.Listeners) > 0 {
		listeners := &yaml.Node{Kind: yaml.MappingNode}

		for _, kind := range allEventKinds {
			if names := s.Listeners[kind]; len(names) > 0 {
				listeners.Content = append(listeners.Content, strNode(string(kind)), listNode(names))
			}
		}

		out.Content = append(out.Content, strNode(keyListeners), listeners)
	}

	if len(s.Transitions) > 0 {
		transitions := &yaml.Node{Kind: yaml.MappingNode}

		for _, t := range s.Transitions {
			var target *yaml.Node
			if t.Resolver != "" {
				target = &yaml.Node{
					Kind:    yaml.MappingNode,
					Style:   yaml.FlowStyle,
					Content: []*yaml.Node{strNode("resolver"), strNode(t.Resolver)},
				}
			} else {
				target = strNode(t.Target)
			}

			transitions.Content = append(transitions.Content, strNode(t.Name), target)
		}

		out.Content = append(out.Content, strNode(keyTransitions), transitions)
	}

	if len(out.Content) == 0 {
		out.Style = yaml.FlowStyle
	}

	return out
}

func strNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func listNode(values []string) *yaml.Node {
	out := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range values {
		out.Content = append(out.Content, strNode(v))
	}

	return out
}
