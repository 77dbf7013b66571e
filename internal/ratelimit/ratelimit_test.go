package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameFaultLimiterAllowsBurst(t *testing.T) {
	l := NewFrameFaultLimiter(1, 3)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
}

func TestFrameFaultLimiterRejectsBeyondBurst(t *testing.T) {
	l := NewFrameFaultLimiter(0.001, 2)

	assert.True(t, l.Allow())
	assert.True(t, l.Allow())
	assert.False(t, l.Allow())
}
