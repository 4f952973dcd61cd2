package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitWindow(t *testing.T) {
	start, end, err := splitWindow("10:00-11:30")
	require.NoError(t, err)
	assert.Equal(t, "10:00", start)
	assert.Equal(t, "11:30", end)

	start, end, err = splitWindow(" 14:00 - 15:00 ")
	require.NoError(t, err)
	assert.Equal(t, "14:00", start)
	assert.Equal(t, "15:00", end)

	_, _, err = splitWindow("10:00")
	assert.Error(t, err)
}

func TestParseSlotTime(t *testing.T) {
	ts, err := parseSlotTime("2026-09-14", "10:30")
	require.NoError(t, err)

	assert.Equal(t, 2026, ts.Year())
	assert.Equal(t, time.September, ts.Month())
	assert.Equal(t, 14, ts.Day())
	assert.Equal(t, 10, ts.Hour())
	assert.Equal(t, 30, ts.Minute())

	// Nairobi is UTC+3 year-round
	_, offset := ts.Zone()
	assert.Equal(t, 3*60*60, offset)

	_, err = parseSlotTime("2026-14-01", "10:30")
	assert.Error(t, err)
	_, err = parseSlotTime("2026-09-14", "25:00")
	assert.Error(t, err)
}

func TestAutoReleaseAt(t *testing.T) {
	deadline, err := autoReleaseAt("2026-09-14", "11:00", 2*time.Hour)
	require.NoError(t, err)

	end, err := parseSlotTime("2026-09-14", "11:00")
	require.NoError(t, err)
	assert.Equal(t, end.Add(2*time.Hour), deadline)
}

func TestEndOfWindow(t *testing.T) {
	// Explicit end wins
	end, err := endOfWindow("2026-09-14", "10:00", "11:30", 60)
	require.NoError(t, err)
	assert.Equal(t, "11:30", end)

	// Open-ended window gets the default viewing length
	end, err = endOfWindow("2026-09-14", "10:00", "", 60)
	require.NoError(t, err)
	assert.Equal(t, "11:00", end)

	// Default length crossing the hour
	end, err = endOfWindow("2026-09-14", "10:45", "", 30)
	require.NoError(t, err)
	assert.Equal(t, "11:15", end)

	_, err = endOfWindow("2026-09-14", "bad", "", 60)
	assert.Error(t, err)
}
