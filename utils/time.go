package utils

import "time"

// TimeProvider interface for time operations
type TimeProvider interface {
	Now() time.Time
}

// RealTimeProvider implements TimeProvider using actual system time
type RealTimeProvider struct{}

func (p RealTimeProvider) Now() time.Time {
	return time.Now()
}

// FixedTimeProvider always reports the same instant. Intended for tests of
// date-sensitive logic (calendar guard, freshness gate).
type FixedTimeProvider struct {
	Time time.Time
}

func (p FixedTimeProvider) Now() time.Time {
	return p.Time
}
