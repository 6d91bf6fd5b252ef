package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRound2(t *testing.T) {
	assert.Equal(t, 800.0, Round2(800.0000001))
	assert.Equal(t, 99.99, Round2(99.987))
	assert.Equal(t, 0.0, Round2(0))
	assert.Equal(t, -10.5, Round2(-10.499999999))
}

func TestLineTotal(t *testing.T) {
	assert.Equal(t, 2999.97, LineTotal(999.99, 3))
	assert.Equal(t, 0.0, LineTotal(100, 0))
}
