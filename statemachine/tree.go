package statemachine

// node wraps a State with its position in the tree.
type node struct {
	state        *State
	parent       *node
	children     map[string]*node
	order        []*node
	initialChild *node
}

func newNode(state *State) *node {
	return &node{
		state:    state,
		children: make(map[string]*node),
	}
}

func (n *node) name() string {
	return n.state.Name()
}

func (n *node) addChild(child *node) {
	if _, exists := n.children[child.name()]; exists {
		return
	}

	child.parent = n
	n.children[child.name()] = child
	n.order = append(n.order, child)

	if child.state.IsInitial() {
		n.initialChild = child
	}
}

func (n *node) removeChild(child *node) {
	if n.children[child.name()] != child {
		return
	}

	delete(n.children, child.name())

	for i, c := range n.order {
		if c == child {
			n.order = append(n.order[:i], n.order[i+1:]...)

			break
		}
	}

	if n.initialChild == child {
		n.initialChild = nil
	}

	child.parent = nil
}

// destroy tears down the subtree bottom-up, calling visit for every destroyed node.
func (n *node) destroy(visit func(*node)) {
	for len(n.order) > 0 {
		child := n.order[len(n.order)-1]
		n.removeChild(child)
		child.destroy(visit)
	}

	if visit != nil {
		visit(n)
	}

	n.initialChild = nil
	n.state.Destroy()
}

// initialDescent follows initialChild links below n; n itself is excluded.
func (n *node) initialDescent() []*node {
	var out []*node

	for cur := n.initialChild; cur != nil; cur = cur.initialChild {
		out = append(out, cur)
	}

	return out
}

// tree holds the synthetic root plus a flat name index of every other node.
type tree struct {
	root  *node
	index map[string]*node
}

func newTree() *tree {
	root, _ := NewState(RootStateName)

	return &tree{
		root:  newNode(root),
		index: make(map[string]*node),
	}
}

func (t *tree) lookup(name string) *node {
	if name == "" {
		return t.root
	}

	return t.index[name]
}

// insert attaches the state under its parent. It reports the new node, or nil
// when a state with the same name already exists.
func (t *tree) insert(state *State) (*node, error) {
	if _, exists := t.index[state.Name()]; exists || state.Name() == RootStateName {
		return nil, nil //nolint:nilnil // duplicate names are ignored
	}

	parent := t.root

	if state.Parent() != "" && state.Parent() != RootStateName {
		parent = t.index[state.Parent()]
		if parent == nil {
			return nil, &StateError{State: state.Name(), Err: ErrParentNotFound}
		}
	}

	n := newNode(state)
	parent.addChild(n)
	t.index[state.Name()] = n

	return n, nil
}

// remove detaches and destroys the subtree rooted at the named node.
func (t *tree) remove(name string) *node {
	n := t.index[name]
	if n == nil {
		return nil
	}

	if n.parent != nil {
		n.parent.removeChild(n)
	}

	n.destroy(func(d *node) {
		delete(t.index, d.name())
	})

	return n
}

func (t *tree) destroy() {
	t.root.destroy(nil)
	t.index = make(map[string]*node)
}

// branchFromRoot returns the ancestors of n from the root down to n, both included.
func branchFromRoot(n *node) []*node {
	var reversed []*node

	for cur := n; cur != nil; cur = cur.parent {
		reversed = append(reversed, cur)
	}

	out := make([]*node, len(reversed))
	for i, cur := range reversed {
		out[len(reversed)-1-i] = cur
	}

	return out
}

// shortestRoute diffs two root-anchored branches. Exits are ordered leaf first,
// entries root first; the common prefix appears in neither.
func shortestRoute(current, target []*node) (exits, entries []*node) {
	common := 0
	for common < len(current) && common < len(target) && current[common] == target[common] {
		common++
	}

	for i := len(current) - 1; i >= common; i-- {
		exits = append(exits, current[i])
	}

	entries = append(entries, target[common:]...)

	return exits, entries
}

func nodeNames(nodes []*node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.name())
	}

	return out
}
