package domain

import "time"

// Clock abstracts time for SLA deadlines, window eviction, and expiry
// sweeps so tests can drive time deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
