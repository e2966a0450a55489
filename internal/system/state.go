package system

import "fmt"

type SystemState int

const (
	StateInitializing SystemState = iota
	StateWaitingForInput
	StateRunning
	StateStopping
	StateStopped
	StateError
)

func (s SystemState) String() string {
	switch s {
	case StateInitializing:
		return "INITIALIZING"
	case StateWaitingForInput:
		return "WAITING_FOR_INPUT"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type SystemStatus struct {
	State     SystemState `json:"state"`
	Timestamp int64       `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

func ValidateTransition(from, to SystemState) error {
	validTransitions := map[SystemState][]SystemState{
		StateInitializing:    {StateWaitingForInput, StateStopping, StateError},
		StateWaitingForInput: {StateRunning, StateStopping, StateError},
		StateRunning:         {StateStopping, StateError},
		StateStopping:        {StateStopped, StateError},
		StateStopped:         {},
		StateError:           {StateStopping, StateStopped},
	}

	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("invalid current state: %s", from)
	}

	for _, validTo := range allowed {
		if validTo == to {
			return nil
		}
	}

	return fmt.Errorf("invalid state transition: %s -> %s", from, to)
}
