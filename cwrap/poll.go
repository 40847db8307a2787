package cwrap

import "time"

// DefaultPollInterval is the sleep between attempts of generated PollBlocking
// methods.
var DefaultPollInterval = 100 * time.Millisecond

// PollBlocking calls poll until it yields a value, fails, or timeout elapses.
// A nil value with a nil error means "not ready yet". The first attempt is
// made immediately; later attempts are spaced by interval, and the deadline
// is checked after each attempt. There is no other way to stop waiting than
// the timeout.
func PollBlocking[T any](timeout, interval time.Duration, poll func() (*T, error)) (*T, error) {
	start := time.Now()
	for {
		v, err := poll()
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
		if time.Since(start) >= timeout {
			return nil, ErrTimedOut
		}
		time.Sleep(interval)
	}
}
