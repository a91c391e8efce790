package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			assert.Equal(t, test.expected, test.class.String())
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection timeout", ErrConnectionTimeout, true},
		{"connection lost", ErrConnectionLost, true},
		{"circuit open", ErrCircuitOpen, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid data", ErrInvalidData, false},
		{"unknown type", ErrUnknownType, false},
		{"net timeout", &net.OpError{Op: "dial", Err: timeoutError{}}, true},
		{"unknown error", fmt.Errorf("operation timeout occurred"), false},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestIsInvalid(t *testing.T) {
	assert.False(t, IsInvalid(nil))
	assert.True(t, IsInvalid(ErrUnknownType))
	assert.True(t, IsInvalid(fmt.Errorf("wrapped: %w", ErrInvalidSpecifier)))
	assert.True(t, IsInvalid(ErrNoType))
	assert.False(t, IsInvalid(ErrConnectionLost))
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.True(t, IsFatal(ErrInvalidConfig))
	assert.True(t, IsFatal(fmt.Errorf("load: %w", ErrMissingConfig)))
	assert.False(t, IsFatal(fmt.Errorf("fatal system error occurred")))
	assert.False(t, IsFatal(ErrConnectionTimeout))
}

func TestClassify_OutermostWins(t *testing.T) {
	err := WrapInvalid(ErrConnectionLost, "Gateway", "handle", "decode")
	assert.True(t, IsInvalid(err))
	assert.False(t, IsTransient(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrInvalidID))
	assert.Equal(t, ErrorFatal, Classify(ErrMissingConfig))
	assert.Equal(t, ErrorTransient, Classify(ErrNoConnection))
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("something odd")))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "Cache", "Store", "store entry"))

	err := Wrap(ErrCacheMiss, "Executor", "fetch", "resolve 304")
	require.Error(t, err)
	assert.Equal(t, "Executor.fetch: resolve 304 failed: cache miss", err.Error())
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestWrapClassified(t *testing.T) {
	err := WrapInvalid(ErrNoType, "Adapter", "FromApplication", "resolve type")
	require.Error(t, err)

	var ce *ClassifiedError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrorInvalid, ce.Class)
	assert.Equal(t, "Adapter", ce.Component)
	assert.Equal(t, "FromApplication", ce.Operation)
	assert.True(t, errors.Is(err, ErrNoType))
	assert.True(t, IsInvalid(err))

	assert.True(t, IsTransient(WrapTransient(ErrNoConnection, "Client", "Connect", "dial")))
	assert.True(t, IsFatal(WrapFatal(ErrInvalidConfig, "Config", "Load", "validate")))
	assert.Nil(t, WrapFatal(nil, "a", "b", "c"))
}

func TestClassifiedError_NoMessage(t *testing.T) {
	ce := &ClassifiedError{Class: ErrorInvalid, Err: ErrInvalidData}
	assert.Equal(t, ErrInvalidData.Error(), ce.Error())
	assert.Equal(t, ErrInvalidData, ce.Unwrap())
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }
