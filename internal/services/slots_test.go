package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotTimes(t *testing.T) {
	times := SlotTimes()
	require.Len(t, times, 16)
	assert.Equal(t, "09:00", times[0])
	assert.Equal(t, "09:30", times[1])
	assert.Equal(t, "16:30", times[15])
}

func TestGenerateTimeSlots(t *testing.T) {
	today := time.Date(2026, 2, 27, 18, 45, 0, 0, time.UTC)

	grid := GenerateTimeSlots(today, 0)
	require.Len(t, grid, DefaultSlotDays)
	assert.Equal(t, "2026-02-27", grid[0].Date)
	assert.Equal(t, "2026-03-01", grid[2].Date)
	assert.Equal(t, "2026-03-28", grid[29].Date)
	for _, day := range grid {
		assert.Len(t, day.Times, 16)
	}

	// дни не делят общий срез
	grid[0].Times[0] = "changed"
	assert.Equal(t, "09:00", grid[1].Times[0])

	assert.Len(t, GenerateTimeSlots(today, 3), 3)
}

func TestIsValidSlotTime(t *testing.T) {
	for _, ok := range []string{"09:00", "12:30", "16:30"} {
		assert.True(t, IsValidSlotTime(ok), ok)
	}
	for _, bad := range []string{"08:30", "17:00", "10:15", "9:00", "", "noon", "10:30:00"} {
		assert.False(t, IsValidSlotTime(bad), bad)
	}
}
