package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/wpp-puppet/internal/bus"
)

// State is the login state of a puppet session.
type State string

const (
	LoggedOut      State = "LOGGED_OUT"
	Authenticating State = "AUTHENTICATING"
	LoggedIn       State = "LOGGED_IN"
)

// KindStatusChanged is the bus kind of StatusChange events.
const KindStatusChanged = "session.status_changed"

// A restored session skips AUTHENTICATING: the transport connects with
// stored credentials and reports ready directly.
var validTransitions = map[State][]State{
	LoggedOut:      {Authenticating, LoggedIn},
	Authenticating: {LoggedIn, LoggedOut},
	LoggedIn:       {LoggedOut},
}

// Machine tracks and enforces session state transitions. While LoggedIn it
// also tracks whether the initial data load is still running.
type Machine struct {
	mu      sync.RWMutex
	current State
	loading bool
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in LoggedOut state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: LoggedOut,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state
// is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.loading = false
	if m.bus != nil {
		m.bus.Emit(KindStatusChanged, StatusChange{From: from, To: to})
	}
	return nil
}

// BeginLoading marks the data load as running. It returns false when a load
// is already in progress or the session is not logged in.
func (m *Machine) BeginLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != LoggedIn || m.loading {
		return false
	}
	m.loading = true
	return true
}

// EndLoading clears the loading flag.
func (m *Machine) EndLoading() {
	m.mu.Lock()
	m.loading = false
	m.mu.Unlock()
}

// Loading reports whether the data load is running.
func (m *Machine) Loading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loading
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
