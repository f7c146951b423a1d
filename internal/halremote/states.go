package halremote

import "time"

// ConnectionState is the aggregate state visible to the outside.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

// ConnectionError classifies the active error.
type ConnectionError string

const (
	ErrorNone      ConnectionError = "none"
	ErrorBind      ConnectionError = "bind"
	ErrorPinChange ConnectionError = "pin_change"
	ErrorCommand   ConnectionError = "command"
	ErrorTimeout   ConnectionError = "timeout"
	ErrorSocket    ConnectionError = "socket"
)

// channelState tracks one of the two service channels.
type channelState int

const (
	channelDown channelState = iota
	channelTrying
	channelUp
)

// Status is a snapshot of the component's observables.
type Status struct {
	Name            string          `json:"name"`
	SessionID       string          `json:"session_id,omitempty"`
	ConnectionState ConnectionState `json:"connection_state"`
	Error           ConnectionError `json:"error"`
	ErrorString     string          `json:"error_string,omitempty"`
	LastStateChange time.Time       `json:"last_state_change"`
}

// StateHandler observes aggregate state changes.
type StateHandler func(state ConnectionState)

// ErrorHandler observes error changes.
type ErrorHandler func(kind ConnectionError, message string)
