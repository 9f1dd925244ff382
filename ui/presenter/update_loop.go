package presenter

import "time"

// Loop aggregates feature presenters and drives periodic updates from the
// UI thread. The zero value is usable (methods are nil-safe).
type Loop struct {
	Scan     *ScanPresenter
	State    *StatePresenter
	Session  *SessionPresenter
	Result   *ResultPresenter
	Preview  *PreviewPresenter
	Schedule func()
}

func NewLoop(scan *ScanPresenter, state *StatePresenter, sess *SessionPresenter, result *ResultPresenter, preview *PreviewPresenter, schedule func()) *Loop {
	return &Loop{Scan: scan, State: state, Session: sess, Result: result, Preview: preview, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	if l.Scan != nil {
		l.Scan.Tick()
	}
	if l.State != nil {
		l.State.Tick()
	}
	if l.Session != nil {
		l.Session.Tick(now)
	}
	if l.Result != nil {
		l.Result.Tick()
	}
	if l.Preview != nil {
		l.Preview.Tick()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
