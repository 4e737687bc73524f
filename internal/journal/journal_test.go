package journal

import (
	"fmt"
	"testing"
	"time"

	"playroom/server/internal/events"
)

type memTelemetry struct {
	drops map[string]int
}

func (m *memTelemetry) RecordJournalDrop(metric string) {
	if m.drops == nil {
		m.drops = make(map[string]int)
	}
	m.drops[metric]++
}

func env(id string) events.Envelope {
	return events.Envelope{ID: id, Type: events.TypeSendMessage, ActorID: "u1"}
}

func TestAppendAssignsMonotonicSequences(t *testing.T) {
	j := New(10, 4, time.Minute)
	for i := 1; i <= 3; i++ {
		entry, ok := j.Append(env(fmt.Sprintf("e%d", i)))
		if !ok {
			t.Fatalf("append e%d rejected", i)
		}
		if entry.Seq != uint64(i) {
			t.Fatalf("expected seq %d, got %d", i, entry.Seq)
		}
	}
	if j.Sequence() != 3 {
		t.Fatalf("expected sequence 3, got %d", j.Sequence())
	}
}

func TestAppendSuppressesDuplicates(t *testing.T) {
	telemetry := &memTelemetry{}
	j := New(10, 4, time.Minute)
	j.AttachTelemetry(telemetry)

	j.Append(env("e1"))
	if _, ok := j.Append(env("e1")); ok {
		t.Fatalf("duplicate append accepted")
	}
	if j.Sequence() != 1 {
		t.Fatalf("duplicate bumped sequence to %d", j.Sequence())
	}
	if telemetry.drops[metricJournalDuplicateEvent] != 1 {
		t.Fatalf("duplicate drop not recorded: %+v", telemetry.drops)
	}
}

func TestAppendRejectsEmptyID(t *testing.T) {
	j := New(10, 4, time.Minute)
	if _, ok := j.Append(events.Envelope{Type: events.TypeSendMessage, ActorID: "u1"}); ok {
		t.Fatalf("empty event id accepted")
	}
}

func TestHistoryEvictionFreesIDs(t *testing.T) {
	j := New(2, 4, time.Minute)
	j.Append(env("e1"))
	j.Append(env("e2"))
	j.Append(env("e3"))
	if j.Seen("e1") {
		t.Fatalf("evicted id still reported as seen")
	}
	if !j.Seen("e3") {
		t.Fatalf("retained id not reported as seen")
	}
}

func TestEntriesSinceCatchUpAndWindowMiss(t *testing.T) {
	j := New(3, 4, time.Minute)
	for i := 1; i <= 5; i++ {
		j.Append(env(fmt.Sprintf("e%d", i)))
	}
	// Window now holds seq 3..5.
	entries, ok := j.EntriesSince(3)
	if !ok {
		t.Fatalf("expected catch-up from seq 3 to succeed")
	}
	if len(entries) != 2 || entries[0].Seq != 4 || entries[1].Seq != 5 {
		t.Fatalf("unexpected catch-up entries %+v", entries)
	}

	if _, ok := j.EntriesSince(1); ok {
		t.Fatalf("expected window miss for seq 1")
	}
}

func TestKeyframeRetentionByCount(t *testing.T) {
	j := New(10, 2, 0)
	for i := 1; i <= 4; i++ {
		j.RecordKeyframe(Keyframe{Seq: uint64(i)})
	}
	size, oldest, newest := j.KeyframeWindow()
	if size != 2 || oldest != 3 || newest != 4 {
		t.Fatalf("unexpected window size=%d oldest=%d newest=%d", size, oldest, newest)
	}
	if _, ok := j.KeyframeBySequence(1); ok {
		t.Fatalf("evicted keyframe still resolvable")
	}
	frame, ok := j.KeyframeBySequence(4)
	if !ok || frame.Seq != 4 {
		t.Fatalf("expected keyframe 4, got %+v ok=%v", frame, ok)
	}
}

func TestResyncHintAfterDuplicateBurst(t *testing.T) {
	j := New(100, 4, time.Minute)
	j.Append(env("e1"))
	j.Append(env("e1"))
	signal, ok := j.ConsumeResyncHint()
	if !ok {
		t.Fatalf("expected resync hint after duplicate at low event volume")
	}
	if signal.DroppedEvents != 1 {
		t.Fatalf("expected one dropped event, got %d", signal.DroppedEvents)
	}
	if _, ok := j.ConsumeResyncHint(); ok {
		t.Fatalf("expected hint to reset after consume")
	}
}

func TestPolicyThresholdRatio(t *testing.T) {
	policy := NewPolicy()
	for i := 0; i < 20000; i++ {
		policy.NoteEvent()
	}
	policy.NoteDrop("duplicate", "e1")
	if _, ok := policy.Consume(); ok {
		t.Fatalf("unexpected signal below threshold")
	}
	policy.NoteDrop("duplicate", "e2")
	signal, ok := policy.Consume()
	if !ok {
		t.Fatalf("expected signal after crossing threshold")
	}
	if signal.DroppedEvents != 2 || signal.TotalEvents != 20000 {
		t.Fatalf("unexpected signal %+v", signal)
	}
}
