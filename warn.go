package bootimg

import (
	"fmt"
	"os"
)

// Warning is a single non-fatal degradation recorded during a phase.
// Phases never abort on these; they record and continue per spec.md §7.
type Warning struct {
	Phase string
	Err   error
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %v", w.Phase, w.Err)
}

// warnLog collects warnings for a single extract/repack run and optionally
// echoes them to stderr in the teacher's voice (plain fmt.Fprintf lines,
// no structured logging library).
type warnLog struct {
	Verbose  bool
	Warnings []Warning
}

func (w *warnLog) warn(phase string, err error) {
	w.Warnings = append(w.Warnings, Warning{Phase: phase, Err: err})
	if w.Verbose {
		fmt.Fprintf(os.Stderr, "Warning: [%s] %v\n", phase, err)
	}
}

func (w *warnLog) logf(format string, args ...any) {
	if w.Verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}
