package websocket

import "time"

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Command emitted to the simulator
	MessageTypeCommand MessageType = "command"

	// Panel snapshot and mapper state
	MessageTypePanelState MessageType = "panel_state"

	// System messages
	MessageTypeSystemStatus MessageType = "system_status"
)

// Message represents a WebSocket message
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// CommandData represents one emitted command
type CommandData struct {
	Control  string `json:"control"`
	Action   uint8  `json:"action"`
	Datagram string `json:"datagram"`
}

// SystemStatusData represents a lifecycle state change
type SystemStatusData struct {
	State    string `json:"state"`
	Previous string `json:"previous_state"`
	Error    string `json:"error,omitempty"`
}

// NewMessage creates a new message with current timestamp
func NewMessage(msgType MessageType, data interface{}) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewCommandMessage(control string, action uint8, datagram string) Message {
	return NewMessage(MessageTypeCommand, CommandData{
		Control:  control,
		Action:   action,
		Datagram: datagram,
	})
}

func NewPanelStateMessage(state interface{}) Message {
	return NewMessage(MessageTypePanelState, state)
}

func NewSystemStatusMessage(newState, previousState, errMsg string) Message {
	return NewMessage(MessageTypeSystemStatus, SystemStatusData{
		State:    newState,
		Previous: previousState,
		Error:    errMsg,
	})
}
