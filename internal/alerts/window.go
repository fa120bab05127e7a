package alerts

import "time"

// WindowStart is the exclusive lower bound of the creation times a digest for
// search considers. A search resumes exactly where its last dispatch left off,
// so a skipped run widens the next window instead of losing listings.
func WindowStart(search SavedSearch, now time.Time) time.Time {
	if search.LastAlertSent != nil {
		return *search.LastAlertSent
	}
	return now.Add(-search.Frequency.DefaultPeriod())
}

// InWindow reports whether createdAt falls in (start, now].
func InWindow(createdAt, start, now time.Time) bool {
	return createdAt.After(start) && !createdAt.After(now)
}

// earliestStart returns the smallest window start across searches, used to
// fetch the candidate listings once per run.
func earliestStart(searches []SavedSearch, now time.Time) time.Time {
	earliest := now
	for _, s := range searches {
		if start := WindowStart(s, now); start.Before(earliest) {
			earliest = start
		}
	}
	return earliest
}
