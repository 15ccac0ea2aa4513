// services/hal/timerutil.go
package hal

import "time"

// resetTimer re-arms t for d, discarding a pending fire. Negative d fires
// immediately.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(max(d, 0))
}
