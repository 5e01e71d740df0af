// Package killswitch implements the process-wide, goroutine-safe abort
// signal the executor polls at step boundaries (spec §4.9).
package killswitch

import "sync/atomic"

// Switch is a process-wide kill switch. The zero value is ready to use.
type Switch struct {
	triggered atomic.Bool
	reason    atomic.Value // string
}

// New returns a ready, untriggered Switch.
func New() *Switch {
	return &Switch{}
}

// Trigger arms the switch with reason. Safe to call from any goroutine —
// a keyboard shortcut handler, an OS signal handler, or an API call.
func (s *Switch) Trigger(reason string) {
	s.reason.Store(reason)
	s.triggered.Store(true)
}

// Triggered reports whether the switch has been armed since the last Reset.
func (s *Switch) Triggered() bool {
	return s.triggered.Load()
}

// Reason returns the reason passed to the most recent Trigger, or "" if
// the switch has never been triggered or was since Reset.
func (s *Switch) Reason() string {
	if !s.triggered.Load() {
		return ""
	}
	reason, _ := s.reason.Load().(string)
	return reason
}

// Reset disarms the switch. Called at session start and end.
func (s *Switch) Reset() {
	s.triggered.Store(false)
	s.reason.Store("")
}
