package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/site_mon/internal/domain"
)

// TimeScheduler implements domain.Scheduler with time.AfterFunc.
type TimeScheduler struct{}

// NewTimeScheduler creates a wall-clock scheduler.
func NewTimeScheduler() *TimeScheduler {
	return &TimeScheduler{}
}

// AfterFunc runs f in its own goroutine after d.
func (TimeScheduler) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}

// Ensure TimeScheduler implements domain.Scheduler.
var _ domain.Scheduler = (*TimeScheduler)(nil)
