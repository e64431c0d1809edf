package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeForbidden, "insufficient permissions")
		assert.True(t, HasCode(err, CodeForbidden))
		assert.False(t, HasCode(err, CodeValidation))
	})

	t.Run("matches wrapped inner code", func(t *testing.T) {
		inner := New(CodeAlreadyResolved, "already approved")
		err := Wrap(inner, CodeInternal, "resolve export")
		assert.True(t, HasCode(err, CodeAlreadyResolved))
		assert.True(t, Is(err, CodeInternal))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeCallBlocked, "standby_mode"))
		assert.True(t, HasCode(err, CodeCallBlocked))
		assert.Equal(t, CodeCallBlocked, CodeOf(err))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		err := errors.New("boom")
		assert.False(t, HasCode(err, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("wrap of nil is nil", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "noop"))
	})
}
