package status

import (
	"testing"

	"github.com/matheus3301/wpp-puppet/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != LoggedOut {
		t.Errorf("initial state = %s, want LOGGED_OUT", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{LoggedOut, Authenticating},
		{LoggedOut, LoggedIn},
		{Authenticating, LoggedIn},
		{Authenticating, LoggedOut},
		{LoggedIn, LoggedOut},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, LoggedIn)
	if err := m.Transition(Authenticating); err == nil {
		t.Error("Transition(LOGGED_IN -> AUTHENTICATING) should fail")
	}
	if m.Current() != LoggedIn {
		t.Errorf("state = %s, want LOGGED_IN (should not have changed)", m.Current())
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New(nil)
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(LoggedOut); err != nil {
		t.Fatalf("LOGGED_OUT -> LOGGED_OUT: %v", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %v", evt)
	default:
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New(nil)
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Authenticating); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != KindStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, KindStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != LoggedOut || change.To != Authenticating {
		t.Errorf("change = %v -> %v, want LOGGED_OUT -> AUTHENTICATING", change.From, change.To)
	}
}

// TestLoadingGuard verifies the ready sequence guard: a second BeginLoading
// while the first load runs must be refused.
func TestLoadingGuard(t *testing.T) {
	m := NewMachine(nil)
	if m.BeginLoading() {
		t.Fatal("BeginLoading must fail while logged out")
	}

	walkTo(t, m, LoggedIn)
	if !m.BeginLoading() {
		t.Fatal("first BeginLoading should succeed")
	}
	if m.BeginLoading() {
		t.Error("re-entrant BeginLoading should fail")
	}
	if !m.Loading() {
		t.Error("Loading() = false during load")
	}

	m.EndLoading()
	if !m.BeginLoading() {
		t.Error("BeginLoading after EndLoading should succeed")
	}
}

func TestLogoutClearsLoading(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, LoggedIn)
	m.BeginLoading()

	if err := m.Transition(LoggedOut); err != nil {
		t.Fatal(err)
	}
	if m.Loading() {
		t.Error("Loading() = true after logout")
	}
}

// TestQRLifecycle simulates a first run: LOGGED_OUT -> AUTHENTICATING ->
// LOGGED_IN -> LOGGED_OUT.
func TestQRLifecycle(t *testing.T) {
	m := NewMachine(nil)
	for _, s := range []State{Authenticating, LoggedIn, LoggedOut} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		LoggedOut:      {},
		Authenticating: {Authenticating},
		LoggedIn:       {Authenticating, LoggedIn},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
