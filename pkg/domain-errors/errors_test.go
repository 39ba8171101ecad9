package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	root := errors.New("fk violation")

	t.Run("finds outer code", func(t *testing.T) {
		err := Wrap(root, CodeTransientSync, "apply")
		assert.True(t, HasCode(err, CodeTransientSync))
		assert.Equal(t, CodeTransientSync, CodeOf(err))
	})

	t.Run("finds code below fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("process: %w", Wrap(root, CodeConfiguration, "lookup"))
		assert.True(t, HasCode(err, CodeConfiguration))
		assert.True(t, errors.Is(err, root))
	})

	t.Run("finds nested codes", func(t *testing.T) {
		inner := Wrap(root, CodeUniqueViolation, "insert")
		outer := Wrap(inner, CodePermanentFailure, "dead-lettered")
		assert.True(t, HasCode(outer, CodeUniqueViolation))
		assert.True(t, HasCode(outer, CodePermanentFailure))
		assert.False(t, HasCode(outer, CodeTransientSync))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(root, CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(root))
	})
}

func TestWrapNil(t *testing.T) {
	require.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}
