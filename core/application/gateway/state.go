package gateway

// State is a lifecycle stage of one Probe or Execute call
type State string

const (
	StateIdle       State = "Idle"
	StateConnecting State = "Connecting"
	StateExecuting  State = "Executing"
	StateSucceeded  State = "Succeeded"
	StateFailed     State = "Failed"
	StateReleased   State = "Released"
)

func (s State) String() string {
	return string(s)
}

// Terminal reports whether no further transition follows s
func (s State) Terminal() bool {
	return s == StateReleased
}

// StateObserver is called on every transition. It may be called from many
// goroutines at once.
type StateObserver func(operation string, state State)
