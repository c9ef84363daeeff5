package types

import "time"

// Clock abstracts time for services that make expiry decisions, so tests
// can pin the clock instead of sleeping.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock backed by time.Now in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
