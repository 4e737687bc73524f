package server

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

type telemetryCounters struct {
	eventsApplied         atomic.Uint64
	eventsRejected        atomic.Uint64
	bytesSent             atomic.Uint64
	messagesSent          atomic.Uint64
	lastBroadcastBytes    atomic.Uint64
	tickDurationMillis    atomic.Int64
	journalDuplicates     atomic.Uint64
	journalInvalid        atomic.Uint64
	keyframeJournalSize   atomic.Uint64
	keyframeOldestSeq     atomic.Uint64
	keyframeNewestSeq     atomic.Uint64
	keyframeRequests      atomic.Uint64
	keyframeNacksExpired  atomic.Uint64
	resyncsScheduled      atomic.Uint64
	heartbeatDisconnects  atomic.Uint64
	leaderboardWriteFails atomic.Uint64
	debug                 bool
}

type telemetrySnapshot struct {
	EventsApplied         uint64 `json:"eventsApplied"`
	EventsRejected        uint64 `json:"eventsRejected"`
	BytesSent             uint64 `json:"bytesSent"`
	MessagesSent          uint64 `json:"messagesSent"`
	TickDuration          int64  `json:"tickDurationMillis"`
	JournalDuplicates     uint64 `json:"journalDuplicates"`
	JournalInvalid        uint64 `json:"journalInvalid"`
	KeyframeJournalSize   uint64 `json:"keyframeJournalSize"`
	KeyframeOldestSeq     uint64 `json:"keyframeOldestSequence"`
	KeyframeNewestSeq     uint64 `json:"keyframeNewestSequence"`
	KeyframeRequests      uint64 `json:"keyframeRequests"`
	KeyframeNacksExpired  uint64 `json:"keyframeNacksExpired"`
	ResyncsScheduled      uint64 `json:"resyncsScheduled"`
	HeartbeatDisconnects  uint64 `json:"heartbeatDisconnects"`
	LeaderboardWriteFails uint64 `json:"leaderboardWriteFails"`
}

func newTelemetryCounters() *telemetryCounters {
	t := &telemetryCounters{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *telemetryCounters) RecordApply(applied bool) {
	if applied {
		t.eventsApplied.Add(1)
	} else {
		t.eventsRejected.Add(1)
	}
}

func (t *telemetryCounters) RecordBroadcast(bytes, recipients int) {
	if bytes < 0 {
		bytes = 0
	}
	if recipients < 0 {
		recipients = 0
	}
	t.bytesSent.Add(uint64(bytes) * uint64(recipients))
	t.messagesSent.Add(uint64(recipients))
	t.lastBroadcastBytes.Store(uint64(bytes))
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := duration.Milliseconds()
	if millis < 0 {
		millis = 0
	}
	t.tickDurationMillis.Store(millis)
	if t.debug {
		fmt.Printf(
			"[telemetry] tick=%dms lastBytes=%d totalBytes=%d applied=%d rejected=%d\n",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.eventsApplied.Load(),
			t.eventsRejected.Load(),
		)
	}
}

// RecordJournalDrop satisfies journal.Telemetry.
func (t *telemetryCounters) RecordJournalDrop(metric string) {
	switch metric {
	case "journal_duplicate_event":
		t.journalDuplicates.Add(1)
	default:
		t.journalInvalid.Add(1)
	}
}

func (t *telemetryCounters) RecordKeyframeJournal(size int, oldest, newest uint64) {
	if size < 0 {
		size = 0
	}
	t.keyframeJournalSize.Store(uint64(size))
	t.keyframeOldestSeq.Store(oldest)
	t.keyframeNewestSeq.Store(newest)
}

func (t *telemetryCounters) RecordKeyframeRequest() {
	t.keyframeRequests.Add(1)
}

func (t *telemetryCounters) IncrementKeyframeExpired() {
	t.keyframeNacksExpired.Add(1)
}

func (t *telemetryCounters) IncrementResyncScheduled() {
	t.resyncsScheduled.Add(1)
}

func (t *telemetryCounters) IncrementHeartbeatDisconnect() {
	t.heartbeatDisconnects.Add(1)
}

func (t *telemetryCounters) IncrementLeaderboardWriteFail() {
	t.leaderboardWriteFails.Add(1)
}

func (t *telemetryCounters) DebugEnabled() bool {
	return t.debug
}

func (t *telemetryCounters) Snapshot() telemetrySnapshot {
	return telemetrySnapshot{
		EventsApplied:         t.eventsApplied.Load(),
		EventsRejected:        t.eventsRejected.Load(),
		BytesSent:             t.bytesSent.Load(),
		MessagesSent:          t.messagesSent.Load(),
		TickDuration:          t.tickDurationMillis.Load(),
		JournalDuplicates:     t.journalDuplicates.Load(),
		JournalInvalid:        t.journalInvalid.Load(),
		KeyframeJournalSize:   t.keyframeJournalSize.Load(),
		KeyframeOldestSeq:     t.keyframeOldestSeq.Load(),
		KeyframeNewestSeq:     t.keyframeNewestSeq.Load(),
		KeyframeRequests:      t.keyframeRequests.Load(),
		KeyframeNacksExpired:  t.keyframeNacksExpired.Load(),
		ResyncsScheduled:      t.resyncsScheduled.Load(),
		HeartbeatDisconnects:  t.heartbeatDisconnects.Load(),
		LeaderboardWriteFails: t.leaderboardWriteFails.Load(),
	}
}
