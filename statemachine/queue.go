package statemachine

// queueEntry is one step of an in-flight transition. A nil state addresses the
// automaton's own listeners; commit entries install the new branch.
type queueEntry struct {
	state  *State
	event  StateEvent
	commit bool
}

type actionQueue struct {
	entries []queueEntry
}

func (q *actionQueue) push(entry queueEntry) {
	q.entries = append(q.entries, entry)
}

func (q *actionQueue) pop() (queueEntry, bool) {
	if len(q.entries) == 0 {
		return queueEntry{}, false
	}

	entry := q.entries[0]
	q.entries[0] = queueEntry{}
	q.entries = q.entries[1:]

	return entry, true
}

func (q *actionQueue) len() int {
	return len(q.entries)
}

func (q *actionQueue) clear() {
	q.entries = nil
}
