package rules

import (
	"github.com/stretchr/testify/assert"
	"testing"
	"time"
)

func TestSettings(t *testing.T) {
	t.Run("a string setting is only returned successfully by String()", func(t *testing.T) {
		s := Settings{"key": "string"}

		val, ok := s.String("key")
		assert.Equal(t, "string", val)
		assert.True(t, ok)

		_, ok = s.Int("key")
		assert.False(t, ok)

		_, ok = s.Boolean("key")
		assert.False(t, ok)

		_, ok = s.Float("key")
		assert.False(t, ok)
	})

	t.Run("an int setting is returned by Int() and widened by Float()", func(t *testing.T) {
		s := Settings{"key": 2}

		_, ok := s.String("key")
		assert.False(t, ok)

		val, ok := s.Int("key")
		assert.True(t, ok)
		assert.Equal(t, 2, val)

		_, ok = s.Boolean("key")
		assert.False(t, ok)

		f, ok := s.Float("key")
		assert.True(t, ok)
		assert.Equal(t, 2.0, f)
	})

	t.Run("a float setting is only returned successfully by Float()", func(t *testing.T) {
		s := Settings{"key": 2.5}

		_, ok := s.Int("key")
		assert.False(t, ok)

		val, ok := s.Float("key")
		assert.True(t, ok)
		assert.Equal(t, 2.5, val)
	})

	t.Run("a boolean setting is only returned successfully by Boolean()", func(t *testing.T) {
		s := Settings{"key": true}

		_, ok := s.String("key")
		assert.False(t, ok)

		val, ok := s.Boolean("key")
		assert.True(t, ok)
		assert.True(t, val)
	})

	t.Run("durations are read as milliseconds", func(t *testing.T) {
		s := Settings{"timeout_ms": 1500, "bad": "1s"}

		d, ok := s.Duration("timeout_ms")
		assert.True(t, ok)
		assert.Equal(t, 1500*time.Millisecond, d)

		_, ok = s.Duration("bad")
		assert.False(t, ok)
	})

	t.Run("merge overlays the second set without modifying either", func(t *testing.T) {
		a := Settings{"one": 1, "two": 2}
		b := Settings{"two": 22, "three": 3}

		m := a.merge(b)

		assert.Equal(t, Settings{"one": 1, "two": 22, "three": 3}, m)
		assert.Equal(t, 2, a["two"])
	})
}
