package statemachine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, names ...string) *tree {
	t.Helper()

	tr := newTree()

	for _, name := range names {
		var opts []StateOption
		if name[0] == '*' {
			name = name[1:]
			opts = append(opts, Initial())
		}

		state, err := NewState(name, opts...)
		require.NoError(t, err)

		n, err := tr.insert(state)
		require.NoError(t, err)
		require.NotNil(t, n)
	}

	return tr
}

func TestShortestRoute(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "*off", "*off/standby", "on", "*on/green", "on/orange", "on/orange/blinking")
	path := func(name string) []*node {
		return branchFromRoot(tr.lookup(name))
	}

	tests := []struct {
		name    string
		from    string
		to      string
		exits   []string
		entries []string
	}{
		{"identical", "on/green", "on/green", []string{}, []string{}},
		{"siblings", "on/green", "on/orange", []string{"on/green"}, []string{"on/orange"}},
		{"across top level", "off/standby", "on/green", []string{"off/standby", "off"}, []string{"on", "on/green"}},
		{"to ancestor", "on/orange/blinking", "on", []string{"on/orange/blinking", "on/orange"}, []string{}},
		{"to descendant", "on", "on/orange/blinking", []string{}, []string{"on/orange", "on/orange/blinking"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			exits, entries := shortestRoute(path(tt.from), path(tt.to))

			assert.Equal(t, tt.exits, nodeNames(exits))
			assert.Equal(t, tt.entries, nodeNames(entries))
		})
	}
}

func TestBranchFromRoot(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "on", "on/orange", "on/orange/blinking")

	assert.Equal(t,
		[]string{RootStateName, "on", "on/orange", "on/orange/blinking"},
		nodeNames(branchFromRoot(tr.lookup("on/orange/blinking"))))
	assert.Equal(t, []string{RootStateName}, nodeNames(branchFromRoot(tr.root)))
}

func TestInitialDescent(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "*a", "a/x", "*a/y", "*a/y/1", "b")

	assert.Equal(t, []string{"a", "a/y", "a/y/1"}, nodeNames(tr.root.initialDescent()))
	assert.Equal(t, []string{"a/y", "a/y/1"}, nodeNames(tr.lookup("a").initialDescent()))
	assert.Empty(t, tr.lookup("b").initialDescent())

	// The last initial child wins.
	state, err := NewState("a/z", Initial())
	require.NoError(t, err)

	_, err = tr.insert(state)
	require.NoError(t, err)

	assert.Equal(t, []string{"a/z"}, nodeNames(tr.lookup("a").initialDescent()))
}

func TestTreeInsert(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "on")

	dup, err := NewState("on")
	require.NoError(t, err)

	n, err := tr.insert(dup)
	require.NoError(t, err)
	assert.Nil(t, n)
	assert.NotSame(t, dup, tr.lookup("on").state)

	orphan, err := NewState("ghost/child")
	require.NoError(t, err)

	_, err = tr.insert(orphan)
	require.ErrorIs(t, err, ErrParentNotFound)

	explicit, err := NewState("top", WithParent(RootStateName))
	require.NoError(t, err)

	n, err = tr.insert(explicit)
	require.NoError(t, err)
	assert.Same(t, tr.root, n.parent)
}

func TestTreeRemove(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "on", "*on/green", "on/green/blinking", "off")
	green := tr.lookup("on/green").state
	blinking := tr.lookup("on/green/blinking").state

	removed := tr.remove("on/green")
	require.NotNil(t, removed)

	assert.Nil(t, tr.lookup("on/green"))
	assert.Nil(t, tr.lookup("on/green/blinking"))
	assert.Nil(t, tr.lookup("on").initialChild)
	assert.Empty(t, tr.lookup("on").order)
	assert.True(t, green.IsDestroyed())
	assert.True(t, blinking.IsDestroyed())
	assert.NotNil(t, tr.lookup("off"))

	assert.Nil(t, tr.remove("on/green"))
}

func TestTreeDestroy(t *testing.T) {
	t.Parallel()

	tr := buildTree(t, "on", "on/green", "off")
	on := tr.lookup("on").state

	tr.destroy()

	assert.Empty(t, tr.index)
	assert.True(t, on.IsDestroyed())
	assert.True(t, tr.root.state.IsDestroyed())
}

func TestActionQueue(t *testing.T) {
	t.Parallel()

	var q actionQueue

	_, ok := q.pop()
	assert.False(t, ok)

	q.push(queueEntry{event: StateEvent{Type: EventExited}})
	q.push(queueEntry{event: StateEvent{Type: EventEntered}})
	q.push(queueEntry{event: StateEvent{Type: EventChanged}, commit: true})
	assert.Equal(t, 3, q.len())

	entry, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, EventExited, entry.event.Type)

	q.clear()
	assert.Equal(t, 0, q.len())
}
