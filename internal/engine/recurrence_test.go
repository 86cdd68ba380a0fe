package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecurrence(t *testing.T) {
	t.Run("weekday set", func(t *testing.T) {
		rec, err := ParseRecurrence([]string{"monday", "WEDNESDAY", "Monday"}, "")
		require.NoError(t, err)
		assert.True(t, rec.IsRecurring())
		assert.True(t, rec.Includes(time.Monday))
		assert.True(t, rec.Includes(time.Wednesday))
		assert.False(t, rec.Includes(time.Friday))
		// Duplicates collapse.
		assert.Equal(t, []string{"MONDAY", "WEDNESDAY"}, rec.WeekdayNames())
	})

	t.Run("one-time date", func(t *testing.T) {
		rec, err := ParseRecurrence(nil, "2026-03-06")
		require.NoError(t, err)
		assert.False(t, rec.IsRecurring())
		assert.Equal(t, time.March, rec.Date().Month())
		assert.Equal(t, 6, rec.Date().Day())
	})

	t.Run("neither is invalid", func(t *testing.T) {
		_, err := ParseRecurrence(nil, "")
		assert.ErrorIs(t, err, ErrInvalidRecurrence)
	})

	t.Run("both is invalid", func(t *testing.T) {
		_, err := ParseRecurrence([]string{"MONDAY"}, "2026-03-06")
		assert.ErrorIs(t, err, ErrInvalidRecurrence)
	})

	t.Run("unknown weekday name", func(t *testing.T) {
		_, err := ParseRecurrence([]string{"FUNDAY"}, "")
		assert.ErrorIs(t, err, ErrInvalidRecurrence)
	})

	t.Run("garbage date", func(t *testing.T) {
		_, err := ParseRecurrence(nil, "06/03/2026")
		assert.ErrorIs(t, err, ErrInvalidRecurrence)
	})
}

func TestCombineDayTime(t *testing.T) {
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)

	got, err := combineDayTime(day, "07:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 7, 30, 0, 0, time.Local), got)

	_, err = combineDayTime(day, "7.30am")
	assert.ErrorIs(t, err, ErrInvalidTime)
}
