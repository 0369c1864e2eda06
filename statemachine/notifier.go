package statemachine

import (
	"slices"

	"github.com/google/uuid"
)

// HandlerID identifies a registered guard or listener. Go funcs are not comparable,
// so registrations are removed and looked up by the id returned when they were added.
type HandlerID struct {
	id uuid.UUID
}

func newHandlerID() HandlerID {
	return HandlerID{id: uuid.New()}
}

// IsZero reports whether nothing was registered under this id.
func (h HandlerID) IsZero() bool {
	return h.id == uuid.Nil
}

func (h HandlerID) String() string {
	return h.id.String()
}

type registration[F any] struct {
	id HandlerID
	fn F
}

// notifier is a register-and-fire registry keyed by event kind.
type notifier[F any] struct {
	entries map[EventKind][]registration[F]
}

func newNotifier[F any]() *notifier[F] {
	return &notifier[F]{
		entries: make(map[EventKind][]registration[F]),
	}
}

func (n *notifier[F]) add(kind EventKind, fn F) HandlerID {
	if n == nil || n.entries == nil {
		return HandlerID{}
	}

	id := newHandlerID()
	n.entries[kind] = append(n.entries[kind], registration[F]{id: id, fn: fn})

	return id
}

func (n *notifier[F]) remove(kind EventKind, id HandlerID) {
	if n == nil || n.entries == nil {
		return
	}

	regs := n.entries[kind]

	idx := slices.IndexFunc(regs, func(r registration[F]) bool { return r.id == id })
	if idx < 0 {
		return
	}

	n.entries[kind] = slices.Delete(regs, idx, idx+1)
}

func (n *notifier[F]) has(kind EventKind, id HandlerID) bool {
	if n == nil || n.entries == nil || id.IsZero() {
		return false
	}

	return slices.ContainsFunc(n.entries[kind], func(r registration[F]) bool { return r.id == id })
}

func (n *notifier[F]) count(kind EventKind) int {
	if n == nil {
		return 0
	}

	return len(n.entries[kind])
}

// snapshot copies the registered funcs so that handlers may (un)register during a dispatch.
func (n *notifier[F]) snapshot(kind EventKind) []F {
	if n == nil {
		return nil
	}

	regs := n.entries[kind]
	out := make([]F, 0, len(regs))

	for _, r := range regs {
		out = append(out, r.fn)
	}

	return out
}

func (n *notifier[F]) clear() {
	if n == nil {
		return
	}

	n.entries = nil
}
