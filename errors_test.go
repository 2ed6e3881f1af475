package bgthread

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThreadLaunchError(t *testing.T) {
	err := error(&ThreadLaunchError{Cause: io.EOF})
	assert.ErrorIs(t, err, ErrThreadLaunch)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "bgthread: failed to launch worker thread: EOF", err.Error())
	assert.Equal(t, ErrThreadLaunch.Error(), (&ThreadLaunchError{}).Error())
}

func TestConstructionError(t *testing.T) {
	for _, tc := range [...]struct {
		name    string
		err     *ConstructionError
		message string
		cause   error
	}{
		{
			name:    "returned",
			err:     &ConstructionError{Cause: io.ErrUnexpectedEOF, Tag: "t"},
			message: `bgthread: construction failed (tag "t"): unexpected EOF`,
			cause:   io.ErrUnexpectedEOF,
		},
		{
			name:    "panic string",
			err:     &ConstructionError{Value: "x", Tag: "t", Panicked: true},
			message: `bgthread: construction panicked (tag "t"): x`,
		},
		{
			name:    "panic error",
			err:     &ConstructionError{Cause: io.EOF, Value: io.EOF, Tag: "t", Panicked: true},
			message: `bgthread: construction panicked (tag "t"): EOF`,
			cause:   io.EOF,
		},
		{
			name:    "empty",
			err:     &ConstructionError{},
			message: ErrConstruction.Error(),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.message, tc.err.Error())
			assert.ErrorIs(t, tc.err, ErrConstruction)
			assert.Equal(t, tc.cause, tc.err.Unwrap())
			assert.False(t, errors.Is(tc.err, ErrThreadLaunch))
		})
	}
}

func TestTimeoutError(t *testing.T) {
	err := error(&TimeoutError{Cause: context.DeadlineExceeded})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "bgthread: wait for worker timed out: context deadline exceeded", err.Error())
	assert.Equal(t, "bgthread: wait for worker timed out", (&TimeoutError{}).Error())
	assert.Equal(t, "custom", (&TimeoutError{Message: "custom"}).Error())
}

func TestPanicCause(t *testing.T) {
	assert.Equal(t, io.EOF, panicCause(io.EOF))
	assert.Nil(t, panicCause("str"))
	assert.Nil(t, panicCause(nil))
}
