package types

import (
	"errors"
	"fmt"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// NewErrorResponse builds a consistent API error payload.
// details can be string, map, struct, etc.
func NewErrorResponse(code, message string, details any) ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// ErrorKind classifies failures so main can pick an exit status.
type ErrorKind int

const (
	KindConfig ErrorKind = iota + 1
	KindDevice
	KindTransport
	KindConsistency
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfig:
		return "configuration"
	case KindDevice:
		return "device"
	case KindTransport:
		return "transport"
	case KindConsistency:
		return "consistency"
	default:
		return "unknown"
	}
}

var (
	ErrMappingNotFound  = errors.New("mapping file not accessible")
	ErrSettingsNotFound = errors.New("settings file not accessible")
	ErrUnknownControl   = errors.New("unknown switch name")
	ErrTooFewSwitches   = errors.New("too few switch bindings")
	ErrInvalidMapping   = errors.New("invalid mapping document")
	ErrDeviceNotFound   = errors.New("switch panel not found")
	ErrDeviceRead       = errors.New("switch panel read failed")
	ErrSourceClosed     = errors.New("input source closed")
	ErrUnregisteredBit  = errors.New("changed bit has no registered state")
	ErrUnknownRotary    = errors.New("rotary position has no command code")
)

// Error carries a kind and the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// Process exit statuses
const (
	ExitOK             = 0
	ExitDeviceNotFound = 1
	ExitFailure        = 2
	ExitDeviceRead     = 3
	ExitConfigAccess   = 4
	ExitConfigInvalid  = 5
	ExitTransport      = 6
	ExitConsistency    = 7
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, ErrSourceClosed):
		return ExitOK
	case errors.Is(err, ErrDeviceNotFound):
		return ExitDeviceNotFound
	case errors.Is(err, ErrMappingNotFound), errors.Is(err, ErrSettingsNotFound):
		return ExitConfigAccess
	}

	switch KindOf(err) {
	case KindConfig:
		return ExitConfigInvalid
	case KindDevice:
		return ExitDeviceRead
	case KindTransport:
		return ExitTransport
	case KindConsistency:
		return ExitConsistency
	default:
		return ExitFailure
	}
}
