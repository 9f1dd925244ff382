package model

import (
	"time"
)

// SessionModel tracks how long the current scan session has been running and
// the accumulated scanning time. Presenters poll Values() and update views.
// The zero value is ready to use.
type SessionModel struct {
	active              bool
	scanStart           time.Time
	lastSessionDuration time.Duration
	accumulated         time.Duration
	sessions            int
}

// NewSessionModel returns a pointer to a ready-to-use SessionModel.
func NewSessionModel() *SessionModel { return &SessionModel{} }

// OnTick advances the model with the current scanning state.
func (m *SessionModel) OnTick(scanning bool, now time.Time) {
	if m == nil {
		return
	}
	if scanning {
		if !m.active { // off -> on
			m.active = true
			m.scanStart = now
			m.lastSessionDuration = 0
			m.sessions++
		}
		m.lastSessionDuration = now.Sub(m.scanStart)
	} else if m.active { // on -> off
		m.lastSessionDuration = now.Sub(m.scanStart)
		m.accumulated += m.lastSessionDuration
		m.active = false
	}
}

// Values returns the current session duration and the total accumulated duration.
// The total includes the ongoing session when active.
func (m *SessionModel) Values() (session, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	session = m.lastSessionDuration
	total = m.accumulated
	if m.active {
		total += session
	}
	return
}

// Sessions counts scan sessions started since start-up.
func (m *SessionModel) Sessions() int {
	if m == nil {
		return 0
	}
	return m.sessions
}
