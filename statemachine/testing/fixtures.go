//nolint:gosec,mnd // Test fixtures with safe file permissions; file mode constants
package testing

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/amp-labs/amp-hfsm/statemachine"
	"gopkg.in/yaml.v3"
)

// TrafficLightYAML is a flat three state cycle.
const TrafficLightYAML = `
name: traffic_light
states:
  green:
    isInitial: true
    next: yellow
  yellow:
    next: red
  red:
    next: green
`

// PowerYAML nests a traffic light under "on". Leaving "on" from any light
// goes through its exit guard.
const PowerYAML = `
name: power
states:
  off:
    isInitial: true
    powerOn: on
  off/standby:
    isInitial: true
  on:
    powerOff: off
    guards:
      exit: [always]
    listeners:
      entered: [noop]
  on/green:
    isInitial: true
    next: on/orange
  on/orange:
    next: on/red
  on/red:
    next: on/green
`

// VendingYAML picks the next state from the first payload value while collecting coins.
const VendingYAML = `
name: vending
states:
  - name: idle
    isInitial: true
    coinInserted: collecting
  - name: collecting
    transitions:
      coinInserted: { resolver: firstArg }
      cancel: idle
  - name: dispensing
    taken: idle
`

// LoadTestConfig loads a config from the testdata directory.
func LoadTestConfig(name string) (*statemachine.Config, error) {
	path := filepath.Join("testdata", name)

	return statemachine.LoadConfig(path)
}

// CreateTestConfig creates a flat config where each state moves to the next
// one with a "next" transition. The first state is initial.
func CreateTestConfig(name string, states ...string) *statemachine.Config {
	config := &statemachine.Config{
		Name:   name,
		States: make([]statemachine.StateConfig, 0, len(states)),
	}

	for i, state := range states {
		sc := statemachine.StateConfig{Name: state, IsInitial: i == 0}

		if i+1 < len(states) {
			sc.Transitions = []statemachine.TransitionConfig{{Name: "next", Target: states[i+1]}}
		}

		config.States = append(config.States, sc)
	}

	return config
}

// SaveTestConfig writes a config as YAML into dir and returns the file path.
func SaveTestConfig(dir, name string, config *statemachine.Config) (string, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create testdata dir: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, name)

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}

	return path, nil
}

func mustParse(doc string) func() *statemachine.Config {
	return func() *statemachine.Config {
		config, err := statemachine.LoadConfigFromBytes([]byte(doc))
		if err != nil {
			panic(fmt.Sprintf("invalid fixture: %v", err))
		}

		return config
	}
}

// CommonTestConfigs provides frequently used test configurations. Every
// call returns a fresh copy. They only reference built-in registry entries.
var CommonTestConfigs = struct { //nolint:gochecknoglobals
	TrafficLight func() *statemachine.Config
	Power        func() *statemachine.Config
	Vending      func() *statemachine.Config
}{
	TrafficLight: mustParse(TrafficLightYAML),
	Power:        mustParse(PowerYAML),
	Vending:      mustParse(VendingYAML),
}
