package presenter

import (
	"time"

	"github.com/soocke/qrscan-go/domain/scan"
	"github.com/soocke/qrscan-go/ui/model"
)

// StatsSource reports controller statistics.
type StatsSource interface {
	Stats() scan.Stats
}

// SessionView displays session durations and scan counters.
type SessionView interface {
	SetSession(session, total time.Duration)
	SetCounters(found, ticks uint64, avgDecode time.Duration)
}

// SessionPresenter formats session timing and counters from the controller.
type SessionPresenter struct {
	sess *model.SessionModel
	src  StatsSource
	view SessionView
}

// NewSessionPresenter returns a new SessionPresenter.
func NewSessionPresenter(sess *model.SessionModel, src StatsSource, view SessionView) *SessionPresenter {
	return &SessionPresenter{sess: sess, src: src, view: view}
}

// Tick advances the session model and pushes values to the view.
func (p *SessionPresenter) Tick(now time.Time) {
	if p == nil || p.sess == nil || p.src == nil || p.view == nil {
		return
	}
	st := p.src.Stats()
	p.sess.OnTick(st.State == scan.StateScanning, now)
	s, t := p.sess.Values()
	p.view.SetSession(s, t)
	p.view.SetCounters(st.Found, st.Ticks, st.AvgDecode)
}
