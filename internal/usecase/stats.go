package usecase

import (
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// KindStats aggregates history for one session kind.
type KindStats struct {
	Kind      domain.SessionKind
	Sessions  int
	Completed int
	Seconds   int // Time actually spent, completed or not
}

// Summary aggregates a history window.
type Summary struct {
	From          time.Time
	To            time.Time
	Kinds         []KindStats // In SessionKind declaration order, zero kinds omitted
	FocusSeconds  int         // Completed focus time only
	CompletedDays int         // Days with at least one completed focus session
}

var summaryOrder = []domain.SessionKind{
	domain.KindFocus,
	domain.KindShortBreak,
	domain.KindLongBreak,
	domain.KindEatingBreak,
}

// Summarize aggregates records that started in [from, to].
func Summarize(records []domain.HistoryRecord, from, to time.Time) Summary {
	sum := Summary{From: from, To: to}
	byKind := make(map[domain.SessionKind]*KindStats)
	days := make(map[string]struct{})

	for _, r := range records {
		if r.StartedAt.Before(from) || r.StartedAt.After(to) {
			continue
		}
		ks, ok := byKind[r.Kind]
		if !ok {
			ks = &KindStats{Kind: r.Kind}
			byKind[r.Kind] = ks
		}
		ks.Sessions++

		spent := int(r.EndedAt.Sub(r.StartedAt) / time.Second)
		if spent < 0 {
			spent = 0
		}
		if r.PlannedSeconds > 0 && spent > r.PlannedSeconds {
			spent = r.PlannedSeconds
		}
		ks.Seconds += spent

		if r.Completed() {
			ks.Completed++
			if r.Kind == domain.KindFocus {
				sum.FocusSeconds += r.PlannedSeconds
				days[r.StartedAt.Format("2006-01-02")] = struct{}{}
			}
		}
	}

	for _, k := range summaryOrder {
		if ks, ok := byKind[k]; ok {
			sum.Kinds = append(sum.Kinds, *ks)
		}
	}
	sum.CompletedDays = len(days)
	return sum
}
