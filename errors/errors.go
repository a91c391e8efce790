package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass tells callers how to react to an error.
type ErrorClass int

const (
	// ErrorTransient may succeed when tried again later.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid is the caller's fault and fails the same way every time.
	ErrorInvalid
	// ErrorFatal stops the process or component.
	ErrorFatal
)

var classNames = map[ErrorClass]string{
	ErrorTransient: "transient",
	ErrorInvalid:   "invalid",
	ErrorFatal:     "fatal",
}

func (ec ErrorClass) String() string {
	if name, ok := classNames[ec]; ok {
		return name
	}
	return "unknown"
}

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrShuttingDown   = errors.New("shutting down")

	ErrNoConnection       = errors.New("no connection")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionTimeout  = errors.New("connection timed out")
	ErrSubscriptionFailed = errors.New("subscribe failed")
	ErrNoTransport        = errors.New("no transport set")
	ErrCircuitOpen        = errors.New("circuit breaker open")
	ErrMaxRetriesExceeded = errors.New("retries exhausted")

	ErrInvalidData      = errors.New("malformed data")
	ErrParsingFailed    = errors.New("cannot parse")
	ErrCacheMiss        = errors.New("cache miss")
	ErrUnknownType      = errors.New("unknown object type")
	ErrInvalidID        = errors.New("malformed object id")
	ErrInvalidSpecifier = errors.New("malformed search specifier")
	// ErrNoType is returned when a URL is needed for an object that has
	// neither a type nor a permalink.
	ErrNoType            = errors.New("unable to generate URL without type")
	ErrNoACL             = errors.New("no ACL information provided")
	ErrUnsupportedAction = errors.New("unsupported action")

	// ErrStateName is returned when a plain event is emitted under a name
	// the bus already holds as a state.
	ErrStateName     = errors.New("name is a state")
	ErrStateNotFound = errors.New("no such state")

	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("configuration missing")
	ErrConfigNotFound = errors.New("configuration file not found")
)

// Unclassified sentinels map to a class here. Anything else not wrapped
// by a Wrap* helper is transient.
var sentinelClass = map[error]ErrorClass{
	ErrNoConnection:      ErrorTransient,
	ErrConnectionLost:    ErrorTransient,
	ErrConnectionTimeout: ErrorTransient,
	ErrCircuitOpen:       ErrorTransient,

	ErrInvalidData:      ErrorInvalid,
	ErrParsingFailed:    ErrorInvalid,
	ErrUnknownType:      ErrorInvalid,
	ErrInvalidID:        ErrorInvalid,
	ErrInvalidSpecifier: ErrorInvalid,
	ErrNoType:           ErrorInvalid,
	ErrNoACL:            ErrorInvalid,

	ErrInvalidConfig: ErrorFatal,
	ErrMissingConfig: ErrorFatal,
}

// ClassifiedError carries a class together with where the error happened.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message == "" {
		return ce.Err.Error()
	}
	return ce.Message
}

func (ce *ClassifiedError) Unwrap() error { return ce.Err }

// classOf reports the class of err and whether err carries one at all.
// The outermost ClassifiedError wins over sentinels further down.
func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	for sentinel, class := range sentinelClass {
		if errors.Is(err, sentinel) {
			return class, true
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTransient, true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorTransient, true
	}
	return ErrorTransient, false
}

// IsTransient reports whether err is known to be worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	class, known := classOf(err)
	return known && class == ErrorTransient
}

// IsInvalid reports whether err was caused by bad input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	class, _ := classOf(err)
	return class == ErrorInvalid
}

// IsFatal reports whether err should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	class, _ := classOf(err)
	return class == ErrorFatal
}

// Classify returns the class of err, transient when nothing says
// otherwise.
func Classify(err error) ErrorClass {
	class, _ := classOf(err)
	return class
}

// Wrap adds context in the form "component.method: action failed: err".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

func wrapAs(class ErrorClass, err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return &ClassifiedError{
		Class:     class,
		Err:       wrapped,
		Message:   wrapped.Error(),
		Component: component,
		Operation: method,
	}
}

// WrapTransient is Wrap plus ErrorTransient.
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapInvalid is Wrap plus ErrorInvalid.
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// WrapFatal is Wrap plus ErrorFatal.
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}
