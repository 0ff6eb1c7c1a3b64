package clock

import "time"

// Clock abstracts "now" so reconciliation runs are a pure function of the
// evaluation instant and can be replayed in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
