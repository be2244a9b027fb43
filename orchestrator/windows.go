package orchestrator

import "time"

// Window bounds one backward fetch to [After, Before).
type Window struct {
	After  time.Time
	Before time.Time
}

// WindowByMonths returns the monthsBack-th month-wide window counting
// backward from anchor. Consecutive values tile seamlessly: window m ends
// exactly where window m-1 begins, so walking monthsBack upward sweeps older
// history with no gaps and no overlap.
func WindowByMonths(anchor time.Time, monthsBack int) Window {
	if monthsBack < 1 {
		monthsBack = 1
	}
	return Window{
		After:  anchor.AddDate(0, -monthsBack, 0),
		Before: anchor.AddDate(0, -(monthsBack-1), 0),
	}
}
