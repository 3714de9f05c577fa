package store

import "time"

// SetClock replaces the time source used for new journal entries.
func (s *SQLiteStore) SetClock(now func() time.Time) {
	s.now = now
}
