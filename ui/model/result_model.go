package model

import "time"

// ResultModel remembers the last payload shown to the user and how many
// distinct payloads were seen. Updated only from the UI thread.
type ResultModel struct {
	text     string
	at       time.Time
	distinct int
	seen     map[string]struct{}
}

func NewResultModel() *ResultModel { return &ResultModel{seen: make(map[string]struct{})} }

// Update records text decoded at at. It reports whether anything changed.
func (m *ResultModel) Update(text string, at time.Time) bool {
	if m == nil || (text == m.text && at.Equal(m.at)) {
		return false
	}
	m.text, m.at = text, at
	if m.seen == nil {
		m.seen = make(map[string]struct{})
	}
	if _, ok := m.seen[text]; !ok {
		m.seen[text] = struct{}{}
		m.distinct++
	}
	return true
}

// Text returns the last payload and when it was decoded.
func (m *ResultModel) Text() (string, time.Time) {
	if m == nil {
		return "", time.Time{}
	}
	return m.text, m.at
}

// Distinct counts different payloads seen since start-up.
func (m *ResultModel) Distinct() int {
	if m == nil {
		return 0
	}
	return m.distinct
}
