package sim

import "fmt"

// HandlerFunc handles one event kind for an entity.
type HandlerFunc func(ev *Event) error

// Entity is a registered simulation participant with a per-entity dispatch
// table. Application types embed *Entity and register their handlers with On.
type Entity struct {
	id       EntityID
	sim      *Simulator
	handlers map[Kind]HandlerFunc
}

// NewEntity creates an entity and registers it with s.
func NewEntity(s *Simulator) *Entity {
	e := &Entity{
		sim:      s,
		handlers: make(map[Kind]HandlerFunc),
	}
	e.id = s.Register(e)
	return e
}

// ID returns the entity's id.
func (e *Entity) ID() EntityID {
	return e.id
}

// Sim returns the simulator the entity is registered with.
func (e *Entity) Sim() *Simulator {
	return e.sim
}

// On binds fn to events of the given kind, replacing any previous binding.
func (e *Entity) On(kind Kind, fn HandlerFunc) {
	e.handlers[kind] = fn
}

// Handles reports whether the entity has a handler for kind.
func (e *Entity) Handles(kind Kind) bool {
	_, ok := e.handlers[kind]
	return ok
}

// Handle implements Handler by dispatching through the table.
func (e *Entity) Handle(ev *Event) error {
	fn, ok := e.handlers[ev.Kind]
	if !ok {
		return fmt.Errorf("entity %d: %w %q", e.id, ErrUnknownKind, ev.Kind)
	}
	return fn(ev)
}

// Schedule sends an event to dest after delay.
func (e *Entity) Schedule(kind Kind, dest EntityID, delay int64, payload any) error {
	return e.sim.Schedule(kind, dest, delay, payload)
}

// SetTimeout starts a timeout owned by this entity.
func (e *Entity) SetTimeout(delay int64, periodic bool, fn TimeoutFunc) (*Timeout, error) {
	t, err := NewTimeout(e.sim, e.id, delay, periodic, fn)
	if err != nil {
		return nil, err
	}
	return t, nil
}
