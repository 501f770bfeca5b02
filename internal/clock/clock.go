package clock

import "time"

// Clock supplies the current time. Services never call time.Now directly so
// batch jobs can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
