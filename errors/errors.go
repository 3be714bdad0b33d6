// Package errors classifies failures so callers can decide whether to retry,
// reject the request or stop. Every wrapped error keeps its cause reachable
// through errors.Is and errors.As.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass tells callers how to react to an error.
type ErrorClass int

const (
	// ErrorTransient may succeed when retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid is caused by the request or the configuration.
	ErrorInvalid
	// ErrorFatal cannot be recovered from.
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
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")

	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrRateLimited       = errors.New("rate limited")

	ErrInvalidData   = errors.New("invalid data format")
	ErrParsingFailed = errors.New("parsing failed")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")

	ErrPlanningFailed       = errors.New("fragment planning failed")
	ErrRequiredFieldMissing = errors.New("required field has no value")
	ErrNoLoader             = errors.New("no entity loader installed")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrUnsupportedSchema    = errors.New("unsupported schema construct")
	ErrUnknownType          = errors.New("unknown catalog type")
)

// Unclassified errors fall back to these sentinel sets.
var (
	transientCauses = []error{ErrConnectionTimeout, ErrNoConnection, ErrRateLimited,
		context.DeadlineExceeded, context.Canceled}
	invalidCauses = []error{ErrInvalidData, ErrParsingFailed, ErrRequiredFieldMissing}
	fatalCauses   = []error{ErrInvalidConfig, ErrMissingConfig, ErrUnsupportedSchema}

	transientWords = []string{"timeout", "connection", "network", "temporary", "unavailable"}
)

// ClassifiedError carries a class and the component and operation that
// produced it.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// classOf returns the class of the outermost ClassifiedError in err's chain.
func classOf(err error) (ErrorClass, bool) {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class, true
	}
	return 0, false
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsTransient reports whether err is worth retrying. Unclassified errors
// count as transient when they wrap a network sentinel, a context error, or
// mention a timeout or connection problem.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorTransient
	}
	if isAny(err, transientCauses) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, word := range transientWords {
		if strings.Contains(msg, word) {
			return true
		}
	}
	return false
}

// IsFatal reports whether err should stop processing.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorFatal
	}
	return isAny(err, fatalCauses)
}

// IsInvalid reports whether err was caused by bad input.
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	if class, ok := classOf(err); ok {
		return class == ErrorInvalid
	}
	return isAny(err, invalidCauses)
}

// Classify returns the class of err. Anything neither invalid nor fatal is
// transient.
func Classify(err error) ErrorClass {
	switch {
	case IsInvalid(err):
		return ErrorInvalid
	case IsFatal(err):
		return ErrorFatal
	default:
		return ErrorTransient
	}
}

// Wrap prefixes err with "component.method: action failed". It returns nil
// for a nil err.
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

// WrapTransient is Wrap with the transient class attached.
func WrapTransient(err error, component, method, action string) error {
	return wrapAs(ErrorTransient, err, component, method, action)
}

// WrapFatal is Wrap with the fatal class attached.
func WrapFatal(err error, component, method, action string) error {
	return wrapAs(ErrorFatal, err, component, method, action)
}

// WrapInvalid is Wrap with the invalid class attached.
func WrapInvalid(err error, component, method, action string) error {
	return wrapAs(ErrorInvalid, err, component, method, action)
}

// Is, As and New mirror the standard library so callers need one import.

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }

func New(text string) error { return errors.New(text) }
