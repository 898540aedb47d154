package consulta

// State is a step of one search.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateDispatching      State = "dispatching"
	StateFetchingFallback State = "fetching_fallback"
	StateRecording        State = "recording"
	StateReconciling      State = "reconciling"
	StateDone             State = "done"
	StateRejected         State = "rejected"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateRejected || s == StateFailed
}

// allowed lists the legal successors of each state.
var allowed = map[State][]State{
	StateIdle:             {StateValidating},
	StateValidating:       {StateDispatching, StateRejected},
	StateDispatching:      {StateFetchingFallback, StateRecording, StateRejected, StateFailed},
	StateFetchingFallback: {StateRecording, StateFailed},
	StateRecording:        {StateReconciling},
	StateReconciling:      {StateDone},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Observer receives progress of a search. Implementations must not block.
type Observer interface {
	// OnTransition is called on every state change.
	OnTransition(from, to State)
	// OnDone is called once per Run with the terminal result, whichever
	// terminal state was reached.
	OnDone(res *Result)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	Transition func(from, to State)
	Done       func(res *Result)
}

func (f ObserverFuncs) OnTransition(from, to State) {
	if f.Transition != nil {
		f.Transition(from, to)
	}
}

func (f ObserverFuncs) OnDone(res *Result) {
	if f.Done != nil {
		f.Done(res)
	}
}
