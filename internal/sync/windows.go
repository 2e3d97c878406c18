// Package sync drives the per-stream replication loop: it batches the date
// range into report windows, runs each window through the API client, emits
// the results, and checkpoints a bookmark after every completed window.
package sync

import (
	"time"
)

// minBatchingRangeDays is the smallest range that honors the configured
// batching granularity. Shorter ranges are walked one day at a time so that
// bookmarks stay fine-grained near the head of the data.
const minBatchingRangeDays = 30

// Window is one inclusive [Start, End] report date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the inclusive length of the window in days.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// Windows splits the inclusive [start, end] range into consecutive windows
// spanning intervalDays+1 days each. Windows are ascending, contiguous and
// non-overlapping, and together cover the range exactly; the final window is
// clipped to end. A start after end yields no windows.
func Windows(start, end time.Time, intervalDays int) []Window {
	if start.After(end) {
		return nil
	}

	if end.Sub(start) < minBatchingRangeDays*24*time.Hour {
		intervalDays = 0
	}

	var windows []Window
	cursor := start
	for !cursor.After(end) {
		windowEnd := cursor.AddDate(0, 0, intervalDays)
		if windowEnd.After(end) {
			windowEnd = end
		}
		windows = append(windows, Window{Start: cursor, End: windowEnd})
		cursor = windowEnd.AddDate(0, 0, 1)
	}

	return windows
}
