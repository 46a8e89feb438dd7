package bootimg

import "time"

// deadline is a phase-scoped wall-clock cap, checked at chunk boundaries
// rather than realized by spawning a timeout-wrapper goroutine.
//
// spec.md §9 calls this out explicitly as a redesign: the original
// (original_source/unpack.py's `timeout` decorator) spawns a daemon thread
// per guarded call and joins it with a timeout, leaking a goroutine whenever
// the wrapped call never returns. A deadline checked at well-defined
// boundaries is cooperative, leaks nothing, and makes cancellation
// deterministic. The signature scanner is the only user: scanWindows checks
// it before each scan chunk. Header parsing, payload extraction and repack
// run without a deadline.
type deadline struct {
	at time.Time
}

// newDeadline returns a deadline d from now. A zero or negative d means no
// deadline (Expired never reports true).
func newDeadline(d time.Duration) deadline {
	if d <= 0 {
		return deadline{}
	}
	return deadline{at: time.Now().Add(d)}
}

func (d deadline) Expired() bool {
	return !d.at.IsZero() && time.Now().After(d.at)
}

// Phase timeouts, per spec.md §4.2/§4.6/§4.7/§5. Only scanTimeout is
// applied (by each scan in scanner.go); parseTimeout, extractTimeout and
// repackTimeout are not checked anywhere.
const (
	scanTimeout    = 30 * time.Second
	parseTimeout   = 300 * time.Second
	extractTimeout = 30 * time.Second
	repackTimeout  = 300 * time.Second
)
