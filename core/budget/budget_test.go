package budget

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterStopsAtLimit(t *testing.T) {
	c := New("placement", 3)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Spend())
	}
	assert.True(t, c.Exhausted())
	err := c.Spend()
	if !errors.Is(err, ErrExceeded) {
		t.Fatalf("expected ErrExceeded, got %v", err)
	}
	var ee *ExceededError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "placement", ee.Name)
	assert.Equal(t, 3, c.Used())
}

func TestCounterUnlimited(t *testing.T) {
	c := New("meals", 0)
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.Spend())
	}
	assert.False(t, c.Exhausted())
}
