package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect_WeekByCalendarRange(t *testing.T) {
	keys := []string{
		"2024-03-17", // Sunday of W11
		"2024-03-11", // Monday of W11
		"2024-03-18", // Monday of W12
		"2024-03-10", // Sunday of W10
		"2024-03-13",
		"2024-03-13",
		"2023-03-13", // same year-less suffix, other year
		"garbage",
	}

	got, err := Select(Day, Week, "2024-W11", keys, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-11", "2024-03-13", "2024-03-17"}, got)
}

func TestSelect_WeekAcrossYearBoundary(t *testing.T) {
	keys := []string{"2024-12-29", "2024-12-30", "2024-12-31", "2025-01-01", "2025-01-05", "2025-01-06"}

	got, err := Select(Day, Week, "2025-W01", keys, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-05"}, got)
}

func TestSelect_MonthAndYear(t *testing.T) {
	days := []string{"2024-01-31", "2024-02-01", "2024-02-29", "2025-02-01"}
	got, err := Select(Day, Month, "2024-02", days, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-02-01", "2024-02-29"}, got)

	months := []string{"2024-12", "2023-12", "2024-01", "2024-06"}
	got, err = Select(Month, Year, "2024", months, 12)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-01", "2024-06", "2024-12"}, got)
}

func TestSelect_HoursOfDay(t *testing.T) {
	hours := []string{"2024-03-09T23", "2024-03-10T00", "2024-03-10T23", "2024-03-11T00"}

	got, err := Select(Hour, Day, "2024-03-10", hours, DefaultMaxCount(Day))
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-10T00", "2024-03-10T23"}, got)
}

func TestSelect_CapKeepsEarliest(t *testing.T) {
	days := []string{"2024-03-05", "2024-03-01", "2024-03-03", "2024-03-02"}

	got, err := Select(Day, Month, "2024-03", days, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-03-01", "2024-03-02"}, got)
}

func TestSelect_Errors(t *testing.T) {
	_, err := Select(Hour, Week, "2024-W11", nil, 0)
	assert.ErrorIs(t, err, ErrUnsupportedRollup)

	_, err = Select(Day, Hour, "2024-03-10T01", nil, 0)
	assert.ErrorIs(t, err, ErrUnsupportedRollup)

	_, err = Select(Day, Week, "2024-11", nil, 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestSelect_EmptyInput(t *testing.T) {
	got, err := Select(Day, Week, "2024-W11", nil, 7)
	require.NoError(t, err)
	assert.Empty(t, got)
}
