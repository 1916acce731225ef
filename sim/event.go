package sim

import "container/heap"

// Kind tags an event. Handlers are looked up by kind in the destination
// entity's dispatch table.
type Kind string

// KindTimeout is delivered to a Timeout entity when it fires.
const KindTimeout Kind = "timeout"

// EntityID identifies a registered entity for the lifetime of a run.
type EntityID int64

// Event is a single scheduled delivery.
type Event struct {
	Kind    Kind
	Dest    EntityID
	Time    int64 // virtual fire time (in ticks)
	Payload any

	seq uint64 // insertion order, breaks ties between equal times
}

// Seq returns the insertion sequence number assigned when the event was scheduled.
func (e *Event) Seq() uint64 {
	return e.seq
}

// eventQueue implements heap.Interface ordered by (Time, seq).
// See canonical Golang example here: https://pkg.go.dev/container/heap#example-package-IntHeap
type eventQueue []*Event

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].Time != eq[j].Time {
		return eq[i].Time < eq[j].Time
	}
	return eq[i].seq < eq[j].seq
}

func (eq eventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventQueue) Push(x any) {
	*eq = append(*eq, x.(*Event))
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}

func (eq *eventQueue) push(ev *Event) {
	heap.Push(eq, ev)
}

func (eq *eventQueue) pop() *Event {
	return heap.Pop(eq).(*Event)
}

// peek returns the next event without removing it, or nil if empty.
func (eq eventQueue) peek() *Event {
	if len(eq) == 0 {
		return nil
	}
	return eq[0]
}
