package payment

import "time"

// Clock abstracts the delays between status checks so tests can run the
// polling loop without real time passing.
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func RealClock() Clock {
	return realClock{}
}
