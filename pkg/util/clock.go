package util

import "time"

// Clock is the time source for anything that stamps orders (validTo).
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant. Useful for reproducible orders.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }
