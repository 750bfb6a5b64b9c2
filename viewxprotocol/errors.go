package viewxprotocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the iViewX protocol.
var (
	// ErrLineTooLong indicates a command line exceeded MaxDatagramSize.
	ErrLineTooLong = errors.New("line too long")

	// ErrTimeout indicates a command timed out waiting for its reply.
	ErrTimeout = errors.New("command timed out")

	// ErrCanceled indicates a pending reply was cancelled before it arrived.
	ErrCanceled = errors.New("command canceled")

	// ErrClosed indicates the channel was torn down while a reply was pending.
	ErrClosed = errors.New("channel closed")

	// ErrAlreadyRegistered indicates a Pending was registered twice or after completion.
	ErrAlreadyRegistered = errors.New("expectation already registered")

	// ErrNotConnected indicates an operation was attempted without a connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected indicates connect was called while already connected.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectionRefused indicates the tracker host rejected our datagrams
	// (ICMP port unreachable on the connected socket).
	ErrConnectionRefused = errors.New("connection refused")
)

// ValidationErrorKind categorizes command validation failures.
type ValidationErrorKind int

const (
	// ErrKindEmptyKeyword indicates a command without a keyword.
	ErrKindEmptyKeyword ValidationErrorKind = iota
	// ErrKindInvalidKeyword indicates a keyword with characters outside [A-Z0-9_].
	ErrKindInvalidKeyword
	// ErrKindUnsupportedArgument indicates an argument that is not an integer or string.
	ErrKindUnsupportedArgument
	// ErrKindOutOfRange indicates a numeric argument outside its documented range.
	ErrKindOutOfRange
	// ErrKindInvalidValue indicates a malformed argument value.
	ErrKindInvalidValue
	// ErrKindArity indicates the wrong number of arguments.
	ErrKindArity
	// ErrKindUnknownCommand indicates a keyword the catalog does not know.
	ErrKindUnknownCommand
)

// ValidationError reports an outbound command rejected before transmission.
type ValidationError struct {
	Keyword string
	Kind    ValidationErrorKind
	Value   string // The offending value, if any
	Message string // Additional context
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	var detail string
	switch e.Kind {
	case ErrKindEmptyKeyword:
		detail = "empty keyword"
	case ErrKindInvalidKeyword:
		detail = fmt.Sprintf("invalid keyword '%s'", e.Value)
	case ErrKindUnsupportedArgument:
		detail = fmt.Sprintf("unsupported argument type %s", e.Value)
	case ErrKindUnknownCommand:
		detail = fmt.Sprintf("unknown command '%s'", e.Value)
	default:
		detail = e.Message
		if e.Value != "" {
			detail = fmt.Sprintf("%s '%s'", e.Message, e.Value)
		}
	}
	if e.Keyword == "" {
		return detail
	}
	return e.Keyword + ": " + detail
}

// Helper functions to create specific validation errors.

func newOutOfRangeError(keyword, message string, value int) error {
	return &ValidationError{Keyword: keyword, Kind: ErrKindOutOfRange, Value: fmt.Sprint(value), Message: message}
}

func newInvalidValueError(keyword, message, value string) error {
	return &ValidationError{Keyword: keyword, Kind: ErrKindInvalidValue, Value: value, Message: message}
}

func newArityError(keyword string, got int, want string) error {
	return &ValidationError{
		Keyword: keyword,
		Kind:    ErrKindArity,
		Message: fmt.Sprintf("expected %s arguments, got %d", want, got),
	}
}

// IsValidationError reports whether err is (or wraps) a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConnectionError represents a transport-level failure.
type ConnectionError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("connection failed: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new connection error.
func NewConnectionError(message string, cause error) error {
	return &ConnectionError{Message: message, Cause: cause}
}
