package model

import (
	"sync/atomic"
)

// ScanModel tracks whether the user asked for scanning. The zero value is
// disabled and usable. Atomic because the start goroutine resets it on failure
// while UI callbacks read it.
type ScanModel struct{ enabled atomic.Bool }

// Enabled reports whether scanning is requested.
func (m *ScanModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag.
func (m *ScanModel) SetEnabled(b bool) {
	if m == nil {
		return
	}
	m.enabled.Store(b)
}
