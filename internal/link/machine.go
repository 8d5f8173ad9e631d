package link

import "fmt"

// TransitionError is returned by Fire when the trigger has no edge from the
// current state. The machine is left unchanged.
type TransitionError struct {
	Role    Role
	From    State
	Trigger Trigger
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: no transition from %s on %s", e.Role, e.From, e.Trigger)
}

// Listener is called after every applied transition.
type Listener func(from, to State, t Trigger)

type edge struct {
	from State
	on   Trigger
}

// Machine is a role-parameterized link state machine.
//
// Machine is not safe for concurrent use; sessions own one machine each and
// only touch it from their serialized context.
type Machine struct {
	role      Role
	state     State
	table     map[edge]State
	listeners []Listener
}

// New returns a machine for the given role, starting in Idle.
func New(role Role) *Machine {
	return &Machine{
		role:  role,
		state: Idle,
		table: transitions(role),
	}
}

func transitions(role Role) map[edge]State {
	t := map[edge]State{
		{Active, PeerFound}:      Linking,
		{Linking, Established}:   Connected,
		{Linking, Failed}:        Idle,
		{Linking, PeerLost}:      Disconnecting,
		{Connected, PeerLost}:    Disconnecting,
		{Disconnecting, Cleared}: Idle,
	}

	switch role {
	case Peripheral:
		t[edge{Idle, Start}] = Preparing
		t[edge{Preparing, Registered}] = Active
		t[edge{Preparing, SetupFailed}] = Idle
	case Central:
		t[edge{Idle, Start}] = Active
		t[edge{Active, Start}] = Active
		// A central may connect to a peer found by an earlier, already stopped scan.
		t[edge{Idle, PeerFound}] = Linking
	}

	for _, s := range []State{Idle, Preparing, Active, Linking, Connected, Disconnecting} {
		t[edge{s, Stop}] = Idle
	}
	return t
}

// Role returns the role the machine was built for.
func (m *Machine) Role() Role { return m.role }

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Is reports whether the machine is in any of the given states.
func (m *Machine) Is(states ...State) bool {
	for _, s := range states {
		if m.state == s {
			return true
		}
	}
	return false
}

// Can reports whether t has an edge from the current state.
func (m *Machine) Can(t Trigger) bool {
	_, ok := m.table[edge{m.state, t}]
	return ok
}

// OnTransition registers a listener.
func (m *Machine) OnTransition(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Fire applies t. Listeners run after the state is updated, in registration order.
func (m *Machine) Fire(t Trigger) error {
	to, ok := m.table[edge{m.state, t}]
	if !ok {
		return &TransitionError{Role: m.role, From: m.state, Trigger: t}
	}

	from := m.state
	m.state = to
	for _, l := range m.listeners {
		l(from, to, t)
	}
	return nil
}
