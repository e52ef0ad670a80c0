package sandbox

// State is a point in the lifecycle of one execution.
type State int

const (
	StateIdle State = iota
	StateSpawning
	StateRunning
	StateCompleted
	StateErrored
	StateTimedOut
	StateWorkerCrashed
	StateCanceled
	StateReaped
)

var stateNames = [...]string{
	StateIdle:          "idle",
	StateSpawning:      "spawning",
	StateRunning:       "running",
	StateCompleted:     "completed",
	StateErrored:       "errored",
	StateTimedOut:      "timed_out",
	StateWorkerCrashed: "worker_crashed",
	StateCanceled:      "canceled",
	StateReaped:        "reaped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether s is one of the outcomes a run resolves to.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateErrored, StateTimedOut, StateWorkerCrashed, StateCanceled:
		return true
	}
	return false
}

// next lists the legal transitions.
var next = map[State][]State{
	StateIdle:          {StateSpawning},
	StateSpawning:      {StateRunning, StateWorkerCrashed, StateTimedOut, StateCanceled},
	StateRunning:       {StateCompleted, StateErrored, StateTimedOut, StateWorkerCrashed, StateCanceled},
	StateCompleted:     {StateReaped},
	StateErrored:       {StateReaped},
	StateTimedOut:      {StateReaped},
	StateWorkerCrashed: {StateReaped},
	StateCanceled:      {StateReaped},
}

func (s State) canMoveTo(to State) bool {
	for _, t := range next[s] {
		if t == to {
			return true
		}
	}
	return false
}
