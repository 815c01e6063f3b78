package supervisor

import "time"

// Sleeper pauses the caller. time.Sleep in production, a recorder in tests.
type Sleeper func(time.Duration)

// WaitUntil polls cond, sleeping interval between failed checks, and gives
// up after maxIterations sleeps. cond is checked once more after the last
// sleep, but a success there still counts as exhaustion. It reports whether
// cond became true before the sleeps ran out.
func WaitUntil(cond func() bool, maxIterations int, interval time.Duration, sleep Sleeper) bool {
	for count := 0; ; count++ {
		if cond() {
			return count < maxIterations
		}
		if count >= maxIterations {
			return false
		}
		sleep(interval)
	}
}
