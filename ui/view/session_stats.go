package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// SessionStats updates session and total scan durations plus decode counters.
type SessionStats interface {
	SetSession(d time.Duration)
	SetTotal(d time.Duration)
	SetCounters(found, ticks uint64, avgDecode time.Duration)
}

type sessionStats struct {
	sessionLbl  *LabelWidget
	totalLbl    *LabelWidget
	countersLbl *LabelWidget
}

// NewSessionStats creates the labels in a grid row starting at startCol.
// If parent is nil, labels are positioned relative to the App root.
func NewSessionStats(parent *FrameWidget, row, startCol int) SessionStats {
	s := &sessionStats{sessionLbl: Label(Width(14)), totalLbl: Label(Width(14)), countersLbl: Label(Width(28))}
	for i, l := range []*LabelWidget{s.sessionLbl, s.totalLbl, s.countersLbl} {
		if parent != nil {
			Grid(l, In(parent), Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		} else {
			Grid(l, Row(row), Column(startCol+i), Sticky("w"), Padx("0.2m"))
		}
	}
	s.sessionLbl.Configure(Txt("Session: 00:00"))
	s.totalLbl.Configure(Txt("Total: 00:00"))
	s.countersLbl.Configure(Txt("Found 0 / 0 ticks"))
	return s
}

func (s *sessionStats) SetSession(d time.Duration) {
	if s == nil || s.sessionLbl == nil {
		return
	}
	s.sessionLbl.Configure(Txt("Session: " + clock(d)))
}

func (s *sessionStats) SetTotal(d time.Duration) {
	if s == nil || s.totalLbl == nil {
		return
	}
	s.totalLbl.Configure(Txt("Total: " + clock(d)))
}

func (s *sessionStats) SetCounters(found, ticks uint64, avgDecode time.Duration) {
	if s == nil || s.countersLbl == nil {
		return
	}
	s.countersLbl.Configure(Txt(fmt.Sprintf("Found %d / %d ticks (%s)", found, ticks, avgDecode.Round(time.Millisecond))))
}

// clock renders d as mm:ss.
func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
