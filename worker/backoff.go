package worker

import "time"

// backoffDelay computes the retry delay after the given number of failed
// attempts: base times 2^attempts, bounded by cap. One failed attempt
// yields 2*base, two yield 4*base, and so on.
func backoffDelay(attempts int, base, cap time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	delay := base
	for i := 0; i < attempts; i++ {
		delay *= 2
		if delay >= cap || delay < 0 {
			return cap
		}
	}
	return delay
}
