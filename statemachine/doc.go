// Package statemachine implements hierarchical finite state machines.
//
// States are named with "/" separated paths: "on/green" is a child of "on". An
// Automaton owns the tree of states and tracks the current branch, the chain of
// active states from the top level down to the deepest one. Transitions are
// looked up by name from the deepest active state outward, gated by entry and
// exit guards, and carried out through a queue of lifecycle events that
// listeners may pause and resume.
//
// Machines are declared in code with CreateState and the StateOption helpers,
// with a Builder, or from YAML through LoadConfig and NewFromConfig.
package statemachine
