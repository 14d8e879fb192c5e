package config

import "time"

const dayLayout = "2006-01-02"

// Record counts a completed focus session on day. Returns true when the
// streak changed.
func (s *Streak) Record(day time.Time) bool {
	today := day.Format(dayLayout)
	if s.LastDay == today {
		return false
	}

	yesterday := day.AddDate(0, 0, -1).Format(dayLayout)
	if s.LastDay == yesterday {
		s.Current++
	} else {
		s.Current = 1
	}
	s.LastDay = today
	if s.Current > s.Best {
		s.Best = s.Current
	}
	return true
}

// Active returns the current streak as of day; a streak whose last day is
// older than yesterday has lapsed.
func (s Streak) Active(day time.Time) int {
	switch s.LastDay {
	case day.Format(dayLayout), day.AddDate(0, 0, -1).Format(dayLayout):
		return s.Current
	}
	return 0
}
