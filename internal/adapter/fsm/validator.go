package fsm

import (
	"context"
	"errors"
	"sync"

	loopfsm "github.com/looplab/fsm"

	"github.com/neomorfeo/apiplane/internal/domain"
)

// Compile-time check: Validator implements domain.TransitionValidator.
var _ domain.TransitionValidator = (*Validator)(nil)

// buildEvents converts a lifecycle table into looplab/fsm EventDesc format.
// It consolidates transitions with the same action+destination into a single
// EventDesc with multiple source states (e.g., CLOSE from PENDING, ACCEPTED
// and PAUSED all go to CLOSED).
func buildEvents(lc domain.Lifecycle) []loopfsm.EventDesc {
	type key struct {
		action string
		dst    string
	}
	grouped := make(map[key][]string)
	order := make([]key, 0)

	for _, t := range lc.Transitions {
		k := key{action: string(t.Action), dst: string(t.Dst)}
		if _, exists := grouped[k]; !exists {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], string(t.Src))
	}

	out := make([]loopfsm.EventDesc, 0, len(order))
	for _, k := range order {
		out = append(out, loopfsm.EventDesc{
			Name: k.action,
			Src:  grouped[k],
			Dst:  k.dst,
		})
	}
	return out
}

// Validator implements domain.TransitionValidator using looplab/fsm.
// It creates a short-lived FSM instance per Apply call, initialized with
// the entity's current state. This is necessary because looplab/fsm is
// stateful (it tracks the current state internally). Event descriptors are
// built once per lifecycle kind.
type Validator struct {
	mu     sync.Mutex
	events map[domain.Kind][]loopfsm.EventDesc
}

// New creates a new FSM-backed transition validator.
func New() *Validator {
	return &Validator{events: make(map[domain.Kind][]loopfsm.EventDesc)}
}

func (v *Validator) eventsFor(lc domain.Lifecycle) []loopfsm.EventDesc {
	v.mu.Lock()
	defer v.mu.Unlock()

	if evs, ok := v.events[lc.Kind]; ok {
		return evs
	}
	evs := buildEvents(lc)
	v.events[lc.Kind] = evs
	return evs
}

// Apply checks if the given action is valid from the current state and
// returns the destination state. Returns a domain.TransitionError if
// the transition is not allowed by the table, the current state is
// terminal, or a guard vetoes it.
func (v *Validator) Apply(ctx context.Context, lc domain.Lifecycle, current domain.State, action domain.Action, guards ...domain.TransitionGuard) (domain.State, error) {
	refuse := func() error {
		return &domain.TransitionError{
			Kind:    lc.Kind,
			Action:  action,
			Current: current,
			Reason:  lc.Reason(action, current),
		}
	}

	if lc.IsTerminal(current) {
		return "", refuse()
	}

	var callbacks loopfsm.Callbacks
	if len(guards) > 0 {
		callbacks = loopfsm.Callbacks{
			"before_event": func(ctx context.Context, e *loopfsm.Event) {
				for _, guard := range guards {
					if err := guard(ctx, domain.Action(e.Event), domain.State(e.Src), domain.State(e.Dst)); err != nil {
						e.Cancel(err)
						return
					}
				}
			},
		}
	}

	machine := loopfsm.NewFSM(string(current), v.eventsFor(lc), callbacks)

	if err := machine.Event(ctx, string(action)); err != nil {
		var canceled loopfsm.CanceledError
		if errors.As(err, &canceled) && canceled.Err != nil {
			return "", canceled.Err
		}

		var invalidEvent loopfsm.InvalidEventError
		var unknownEvent loopfsm.UnknownEventError
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &invalidEvent) || errors.As(err, &unknownEvent) || errors.As(err, &noTransition) {
			return "", refuse()
		}
		return "", err
	}

	return domain.State(machine.Current()), nil
}
