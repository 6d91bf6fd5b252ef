package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWindow() (time.Time, time.Time) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return start, start.Add(72 * time.Hour)
}

func TestNewValidation(t *testing.T) {
	start, end := validWindow()

	_, err := New("d1", "p1", TypePercentage, 101, start, end)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("d1", "p1", TypePercentage, -1, start, end)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("d1", "p1", TypeFixed, -5, start, end)
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = New("d1", "p1", TypePercentage, 20, end, start)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New("d1", "p1", TypePercentage, 20, start, start)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = New("d1", "p1", Type("bogo"), 20, start, end)
	assert.Error(t, err)

	d, err := New("d1", "p1", TypePercentage, 20, start, end)
	require.NoError(t, err)
	assert.True(t, d.Active)
}

func TestApplyPercentage(t *testing.T) {
	start, end := validWindow()
	d, err := New("d1", "p1", TypePercentage, 20, start, end)
	require.NoError(t, err)

	assert.Equal(t, 800.0, d.Apply(1000))
	assert.Equal(t, 79.99, d.Apply(99.99))
	assert.Equal(t, 0.0, d.Apply(0))
}

func TestApplyFixed(t *testing.T) {
	start, end := validWindow()
	d, err := New("d1", "p1", TypeFixed, 150, start, end)
	require.NoError(t, err)

	assert.Equal(t, 850.0, d.Apply(1000))
	// A fixed discount larger than the base clamps to zero.
	assert.Equal(t, 0.0, d.Apply(100))
}

func TestExpiredAndCurrent(t *testing.T) {
	start, end := validWindow()
	d, err := New("d1", "p1", TypePercentage, 20, start, end)
	require.NoError(t, err)

	assert.False(t, d.Current(start.Add(-time.Hour)), "not yet started")
	assert.True(t, d.Current(start.Add(time.Hour)))
	assert.False(t, d.Expired(end))
	assert.True(t, d.Expired(end.Add(time.Second)))
	assert.False(t, d.Current(end.Add(time.Second)))

	d.Deactivate()
	assert.False(t, d.Current(start.Add(time.Hour)))
}
