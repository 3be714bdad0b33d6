package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
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
		{"rate limited", ErrRateLimited, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"invalid data", ErrInvalidData, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("x")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("x")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, IsTransient(test.err))
		})
	}
}

func TestClassifyPipelineErrors(t *testing.T) {
	assert.Equal(t, ErrorInvalid, Classify(ErrRequiredFieldMissing))
	assert.Equal(t, ErrorFatal, Classify(ErrUnsupportedSchema))
	assert.Equal(t, ErrorTransient, Classify(fmt.Errorf("something odd")))

	planning := WrapInvalid(ErrPlanningFailed, "DataGraph", "New", "plan root fragment")
	assert.True(t, IsInvalid(planning))
	assert.True(t, Is(planning, ErrPlanningFailed))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "C", "M", "a"))

	err := Wrap(ErrNoLoader, "EntityCache", "Objects", "load entity")
	assert.Equal(t, "EntityCache.Objects: load entity failed: no entity loader installed", err.Error())
	assert.True(t, Is(err, ErrNoLoader))
}

func TestWrapClassified(t *testing.T) {
	base := fmt.Errorf("boom")

	tests := []struct {
		name  string
		err   error
		class ErrorClass
	}{
		{"transient", WrapTransient(base, "C", "M", "a"), ErrorTransient},
		{"invalid", WrapInvalid(base, "C", "M", "a"), ErrorInvalid},
		{"fatal", WrapFatal(base, "C", "M", "a"), ErrorFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ce *ClassifiedError
			assert.True(t, As(tt.err, &ce))
			assert.Equal(t, tt.class, ce.Class)
			assert.Equal(t, "C", ce.Component)
			assert.Equal(t, "M", ce.Operation)
			assert.True(t, Is(tt.err, base))
		})
	}
}
