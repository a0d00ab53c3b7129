package workflow

import (
	"fmt"
	"sort"
)

// Transitions maps a state and trigger to the next state
type Transitions map[State]map[Trigger]State

// Lifecycle is an immutable transition table shared by many machines.
// Every non-terminal state additionally accepts the failure trigger.
type Lifecycle struct {
	initial     State
	transitions Transitions
	failure     Trigger
	failed      State
}

// NewLifecycle validates the table and returns a lifecycle. It panics on
// unknown states since tables are package-level literals.
func NewLifecycle(initial State, failure Trigger, failed State, table Transitions) *Lifecycle {
	check := func(s State) {
		if !s.IsValid() {
			panic(fmt.Sprintf("invalid state in lifecycle: %s", s))
		}
	}
	check(initial)
	check(failed)

	copied := make(Transitions, len(table))
	for from, edges := range table {
		check(from)
		out := make(map[Trigger]State, len(edges))
		for trigger, to := range edges {
			check(to)
			out[trigger] = to
		}
		copied[from] = out
	}

	return &Lifecycle{initial: initial, transitions: copied, failure: failure, failed: failed}
}

func (l *Lifecycle) next(from State, trigger Trigger) (State, bool) {
	if to, ok := l.transitions[from][trigger]; ok {
		return to, true
	}
	if trigger == l.failure && !from.IsTerminal() {
		return l.failed, true
	}
	return "", false
}

// Start returns a machine positioned at the initial state
func (l *Lifecycle) Start() *Machine {
	return &Machine{lifecycle: l, current: l.initial, history: []State{l.initial}}
}

// Machine tracks one instance through a lifecycle. It is not safe for
// concurrent use; each candidate owns its machine.
type Machine struct {
	lifecycle *Lifecycle
	current   State
	history   []State
}

// State returns the current state
func (m *Machine) State() State {
	return m.current
}

// CanFire reports whether trigger is permitted from the current state
func (m *Machine) CanFire(trigger Trigger) bool {
	if m.current.IsTerminal() {
		return false
	}
	_, ok := m.lifecycle.next(m.current, trigger)
	return ok
}

// Fire moves to the next state or returns a *TransitionError
func (m *Machine) Fire(trigger Trigger) error {
	if m.current.IsTerminal() {
		return &TransitionError{From: m.current, Trigger: trigger, cause: ErrTerminalState}
	}

	to, ok := m.lifecycle.next(m.current, trigger)
	if !ok {
		return &TransitionError{From: m.current, Trigger: trigger, cause: ErrInvalidTransition}
	}

	m.current = to
	m.history = append(m.history, to)
	return nil
}

// Permitted lists the triggers accepted from the current state, sorted
func (m *Machine) Permitted() []Trigger {
	if m.current.IsTerminal() {
		return nil
	}

	triggers := make([]Trigger, 0, len(m.lifecycle.transitions[m.current])+1)
	for t := range m.lifecycle.transitions[m.current] {
		triggers = append(triggers, t)
	}
	if _, explicit := m.lifecycle.transitions[m.current][m.lifecycle.failure]; !explicit {
		triggers = append(triggers, m.lifecycle.failure)
	}

	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })
	return triggers
}

// History returns a copy of the visited states, starting with the initial state
func (m *Machine) History() []State {
	return append([]State(nil), m.history...)
}
