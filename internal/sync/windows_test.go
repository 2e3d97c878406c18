package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

// requireCovering asserts the structural invariants every window list must
// hold: ascending, contiguous, non-overlapping, covering [start, end].
func requireCovering(t *testing.T, windows []Window, start, end time.Time) {
	t.Helper()

	require.NotEmpty(t, windows)
	assert.True(t, windows[0].Start.Equal(start), "first window starts at range start")
	assert.True(t, windows[len(windows)-1].End.Equal(end), "last window ends at range end")

	for i, w := range windows {
		assert.False(t, w.End.Before(w.Start), "window %d end before start", i)
		if i > 0 {
			expected := windows[i-1].End.AddDate(0, 0, 1)
			assert.True(t, w.Start.Equal(expected), "window %d not contiguous with predecessor", i)
		}
	}
}

func TestWindowsDaily(t *testing.T) {
	start := day("2024-01-01")
	end := day("2024-01-03")

	windows := Windows(start, end, 0)

	require.Len(t, windows, 3)
	requireCovering(t, windows, start, end)
	for _, w := range windows {
		assert.Equal(t, 1, w.Days())
	}
}

func TestWindowsWeekly(t *testing.T) {
	start := day("2024-01-01")
	end := day("2024-03-01")

	windows := Windows(start, end, 6)

	requireCovering(t, windows, start, end)
	for i, w := range windows[:len(windows)-1] {
		assert.Equal(t, 7, w.Days(), "window %d", i)
	}
	assert.LessOrEqual(t, windows[len(windows)-1].Days(), 7)
}

func TestWindowsMonthlyClipsFinalWindow(t *testing.T) {
	start := day("2024-01-01")
	end := day("2024-02-15")

	windows := Windows(start, end, 29)

	require.Len(t, windows, 2)
	requireCovering(t, windows, start, end)
	assert.Equal(t, 30, windows[0].Days())
	assert.True(t, windows[1].Start.Equal(day("2024-01-31")))
	assert.True(t, windows[1].End.Equal(end))
}

func TestWindowsShortRangeForcesDaily(t *testing.T) {
	start := day("2024-01-01")
	end := day("2024-01-10")

	for _, interval := range []int{6, 29} {
		windows := Windows(start, end, interval)

		require.Len(t, windows, 10)
		requireCovering(t, windows, start, end)
		for _, w := range windows {
			assert.Equal(t, 1, w.Days())
		}
	}
}

func TestWindowsSingleDay(t *testing.T) {
	d := day("2024-06-15")

	windows := Windows(d, d, 29)

	require.Len(t, windows, 1)
	assert.True(t, windows[0].Start.Equal(d))
	assert.True(t, windows[0].End.Equal(d))
}

func TestWindowsStartAfterEnd(t *testing.T) {
	assert.Empty(t, Windows(day("2024-02-01"), day("2024-01-01"), 0))
}
