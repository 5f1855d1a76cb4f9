package calendar

// Changed reports whether the destination copy of a source event needs an
// update. Start, end, location and description are compared. The title is not:
// the destination always carries the normalized title.
//
// A date-time without zone information is compared as if it were UTC. A value
// missing on either side where the other has one counts as a change, so a
// doubtful comparison leads to a rewrite rather than a stale mirror.
func Changed(source Event, synced SyncedEvent) bool {
	if source.Start.IsZero() || synced.Start.IsZero() {
		return true
	}
	if !sameTime(source.Start, synced.Start) {
		return true
	}

	if source.End.IsZero() != synced.End.IsZero() {
		return true
	}
	if !source.End.IsZero() && !sameTime(source.End, synced.End) {
		return true
	}

	if source.Location != synced.Location {
		return true
	}
	return source.Description != synced.Description
}

func sameTime(a, b Time) bool {
	if a.AllDay != b.AllDay {
		return false
	}
	if a.AllDay {
		ay, am, ad := a.Value.Date()
		by, bm, bd := b.Value.Date()
		return ay == by && am == bm && ad == bd
	}
	// Floating values already hold their wall clock in UTC.
	return a.Value.Equal(b.Value)
}
