package journal

import (
	"fmt"
)

// ResyncReason records one dropped or duplicated event that contributed to
// a resync signal.
type ResyncReason struct {
	Kind    string
	EventID string
}

// ResyncSignal summarizes why a full-snapshot resync was scheduled.
type ResyncSignal struct {
	DroppedEvents uint64
	TotalEvents   uint64
	Reasons       []ResyncReason
}

// Policy accumulates drop statistics and schedules a resync once the drop
// ratio crosses the threshold. Counters reset after each consumption.
type Policy struct {
	totalEvents   uint64
	droppedEvents uint64
	pending       bool
	reasons       []ResyncReason
}

const droppedThresholdPerTenThousand = 1
const resyncReasonLimit = 8

// NewPolicy constructs an idle policy.
func NewPolicy() *Policy {
	return &Policy{reasons: make([]ResyncReason, 0, resyncReasonLimit)}
}

// NoteEvent counts one observed event. Counters halve near overflow so the
// ratio stays meaningful on very long sessions.
func (p *Policy) NoteEvent() {
	if p == nil {
		return
	}
	if p.totalEvents == ^uint64(0) {
		p.totalEvents = p.totalEvents / 2
		p.droppedEvents = p.droppedEvents / 2
	}
	p.totalEvents++
}

// NoteDrop counts one dropped event and re-evaluates the threshold.
func (p *Policy) NoteDrop(kind, eventID string) {
	if p == nil {
		return
	}
	p.droppedEvents++
	if len(p.reasons) < resyncReasonLimit {
		p.reasons = append(p.reasons, ResyncReason{Kind: kind, EventID: eventID})
	}
	p.evaluate()
}

func (p *Policy) evaluate() {
	if p == nil || p.pending || p.droppedEvents == 0 {
		return
	}
	total := p.totalEvents
	if total == 0 {
		total = 1
	}
	if p.droppedEvents*10000 >= total*droppedThresholdPerTenThousand {
		p.pending = true
	}
}

// Consume returns the pending signal, if any, and resets the counters.
func (p *Policy) Consume() (ResyncSignal, bool) {
	if p == nil || !p.pending {
		return ResyncSignal{}, false
	}
	signal := ResyncSignal{
		DroppedEvents: p.droppedEvents,
		TotalEvents:   p.totalEvents,
		Reasons:       append([]ResyncReason(nil), p.reasons...),
	}
	p.pending = false
	p.totalEvents = 0
	p.droppedEvents = 0
	if len(p.reasons) > 0 {
		p.reasons = p.reasons[:0]
	}
	return signal, true
}

// Summary renders the signal for diagnostics logging.
func (s ResyncSignal) Summary() string {
	if s.DroppedEvents == 0 && s.TotalEvents == 0 {
		return ""
	}
	return fmt.Sprintf("dropped=%d total_events=%d reasons=%v", s.DroppedEvents, s.TotalEvents, s.Reasons)
}
