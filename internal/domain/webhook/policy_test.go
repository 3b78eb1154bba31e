package webhook

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRetryPolicy(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, err := NewRetryPolicy(5, 30*time.Second, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 5, p.MaxAttempts())
	})

	t.Run("rejects non-positive values", func(t *testing.T) {
		_, err := NewRetryPolicy(0, 30*time.Second, time.Hour)
		assert.ErrorIs(t, err, ErrInvalidRetryPolicy)

		_, err = NewRetryPolicy(5, 0, time.Hour)
		assert.ErrorIs(t, err, ErrInvalidRetryPolicy)
	})

	t.Run("caps below base are raised to base", func(t *testing.T) {
		p, err := NewRetryPolicy(3, time.Minute, time.Second)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, p.Delay(2))
	})
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := DefaultRetryPolicy()

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 1, want: 0},
		{attempt: 2, want: 30 * time.Second},
		{attempt: 3, want: time.Minute},
		{attempt: 4, want: 2 * time.Minute},
		{attempt: 5, want: 4 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestRetryPolicy_DelayCapped(t *testing.T) {
	p, err := NewRetryPolicy(20, 30*time.Second, 5*time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, p.Delay(10))
	assert.Equal(t, 5*time.Minute, p.Delay(20))
}

func TestRetryPolicy_NextAttemptAt(t *testing.T) {
	p := DefaultRetryPolicy()
	now := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("schedules while budget remains", func(t *testing.T) {
		next, ok := p.NextAttemptAt(now, 1)
		require.True(t, ok)
		assert.Equal(t, now.Add(30*time.Second), next)

		next, ok = p.NextAttemptAt(now, 4)
		require.True(t, ok)
		assert.Equal(t, now.Add(4*time.Minute), next)
	})

	t.Run("stops at the attempt budget", func(t *testing.T) {
		_, ok := p.NextAttemptAt(now, 5)
		assert.False(t, ok)

		_, ok = p.NextAttemptAt(now, 6)
		assert.False(t, ok)
	})
}
