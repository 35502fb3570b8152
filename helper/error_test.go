package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps with context", func(t *testing.T) {
		inner := fmt.Errorf("connection refused")

		err := NewError("connect database", inner)

		assert.Error(t, err)
		assert.Equal(t, "error at connect database: connection refused", err.Error())
	})

	t.Run("Wrapped error is unwrappable", func(t *testing.T) {
		inner := errors.New("boom")

		err := NewError("scan", inner)

		assert.ErrorIs(t, err, inner)
	})
}
