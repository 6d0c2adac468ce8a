package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{IdleState(), "idle"},
		{PlayingAt(2), "playing(2)"},
		{PausedAt(0), "paused(0)"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.state.String())
	}
}

func TestState_Active(t *testing.T) {
	assert.False(t, IdleState().Active())
	assert.True(t, PlayingAt(1).Active())
	assert.True(t, PausedAt(1).Active())
	assert.Equal(t, -1, IdleState().Index)
}
