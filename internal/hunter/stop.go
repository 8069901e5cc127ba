package hunter

import "sync/atomic"

// StopSignal is the process-wide stop flag. It starts false, is set at most
// once per run (by the first matching attempt, or by an operator shutdown),
// and is never reset. Claim uses compare-and-swap so the race between two
// simultaneously matching attempts is observable rather than silent: exactly
// one caller gets true.
type StopSignal struct {
	flag atomic.Bool
}

// Claim attempts to set the flag, returning true only for the first caller.
func (s *StopSignal) Claim() bool {
	return s.flag.CompareAndSwap(false, true)
}

// Trip sets the flag unconditionally (shutdown path).
func (s *StopSignal) Trip() {
	s.flag.Store(true)
}

// Stopped reports whether the flag has been set.
func (s *StopSignal) Stopped() bool {
	return s.flag.Load()
}
