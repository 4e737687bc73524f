package journal

import (
	"sync"
	"time"

	"playroom/server/internal/events"
	"playroom/server/internal/model"
)

// Telemetry captures the metrics adapter used by the journal to report
// suppressed duplicates and drops.
type Telemetry interface {
	RecordJournalDrop(metric string)
}

const (
	metricJournalDuplicateEvent = "journal_duplicate_event"
	metricJournalEmptyEventID   = "journal_empty_event_id"
)

// Entry is one applied broadcast event with its room sequence number.
type Entry struct {
	Seq        uint64
	Envelope   events.Envelope
	RecordedAt time.Time
}

// Keyframe is a full document snapshot tagged with the sequence it was
// taken at. Late joiners and resyncing peers rehydrate from these.
type Keyframe struct {
	Seq        uint64
	Tick       uint64
	Snapshot   model.Snapshot
	RecordedAt time.Time
}

// KeyframeEviction describes one keyframe dropped during retention.
type KeyframeEviction struct {
	Seq    uint64
	Tick   uint64
	Reason string
}

// KeyframeRecordResult reports the retention window after a record.
type KeyframeRecordResult struct {
	Size      int
	OldestSeq uint64
	NewestSeq uint64
	Evicted   []KeyframeEviction
}

// Journal keeps the recent broadcast history for one room plus a rolling
// keyframe buffer. Duplicate event ids are suppressed here so a transport
// redelivery never reaches the document twice.
type Journal struct {
	mu         sync.RWMutex
	entries    []Entry
	maxEntries int
	seen       map[string]uint64
	keyframes  []Keyframe
	maxFrames  int
	maxAge     time.Duration
	nextSeq    uint64
	telemetry  Telemetry
	resync     *Policy
}

// New constructs a journal retaining up to maxEntries events and
// keyframeCapacity keyframes no older than maxAge.
func New(maxEntries, keyframeCapacity int, maxAge time.Duration) *Journal {
	if maxEntries < 0 {
		maxEntries = 0
	}
	if keyframeCapacity < 0 {
		keyframeCapacity = 0
	}
	if maxAge < 0 {
		maxAge = 0
	}
	return &Journal{
		entries:    make([]Entry, 0, maxEntries),
		maxEntries: maxEntries,
		seen:       make(map[string]uint64),
		keyframes:  make([]Keyframe, 0, keyframeCapacity),
		maxFrames:  keyframeCapacity,
		maxAge:     maxAge,
		resync:     NewPolicy(),
	}
}

// AttachTelemetry wires the metrics adapter. Safe to call once at setup.
func (j *Journal) AttachTelemetry(t Telemetry) {
	j.mu.Lock()
	j.telemetry = t
	j.mu.Unlock()
}

// Append records an applied event, assigns it the next sequence number and
// returns the stored entry. It returns false when the event id was already
// recorded; the caller must treat that as a no-op, never an error.
func (j *Journal) Append(env events.Envelope) (Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.resync.NoteEvent()

	if env.ID == "" {
		j.recordDropLocked(metricJournalEmptyEventID)
		j.resync.NoteDrop(metricJournalEmptyEventID, "")
		return Entry{}, false
	}
	if _, dup := j.seen[env.ID]; dup {
		j.recordDropLocked(metricJournalDuplicateEvent)
		j.resync.NoteDrop(metricJournalDuplicateEvent, env.ID)
		return Entry{}, false
	}

	j.nextSeq++
	entry := Entry{Seq: j.nextSeq, Envelope: env, RecordedAt: time.Now()}
	j.entries = append(j.entries, entry)
	j.seen[env.ID] = entry.Seq

	if j.maxEntries > 0 && len(j.entries) > j.maxEntries {
		overflow := len(j.entries) - j.maxEntries
		for i := 0; i < overflow; i++ {
			delete(j.seen, j.entries[i].Envelope.ID)
		}
		copy(j.entries, j.entries[overflow:])
		j.entries = j.entries[:len(j.entries)-overflow]
	}

	return entry, true
}

// Seen reports whether the event id has been applied and is still within
// the retained history window.
func (j *Journal) Seen(eventID string) bool {
	if eventID == "" {
		return false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	_, ok := j.seen[eventID]
	return ok
}

// Sequence reports the sequence number of the most recent entry.
func (j *Journal) Sequence() uint64 {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.nextSeq
}

// EntriesSince returns copies of all retained entries with a sequence
// strictly greater than seq, oldest first. The second result is false when
// the window no longer reaches back to seq, meaning the caller needs a
// full-snapshot resync instead of a catch-up.
func (j *Journal) EntriesSince(seq uint64) ([]Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if len(j.entries) == 0 {
		return nil, j.nextSeq == seq
	}
	oldest := j.entries[0].Seq
	if seq+1 < oldest {
		return nil, false
	}
	out := make([]Entry, 0, len(j.entries))
	for _, entry := range j.entries {
		if entry.Seq > seq {
			out = append(out, entry)
		}
	}
	return out, true
}

// ConsumeResyncHint reports whether enough events were dropped that peers
// should be resynchronised from a full snapshot.
func (j *Journal) ConsumeResyncHint() (ResyncSignal, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.resync.Consume()
}

// RecordKeyframe stores a snapshot in the buffer enforcing retention by
// count and age.
func (j *Journal) RecordKeyframe(frame Keyframe) KeyframeRecordResult {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.maxFrames == 0 {
		j.keyframes = j.keyframes[:0]
		return KeyframeRecordResult{}
	}

	frame.RecordedAt = time.Now()
	j.keyframes = append(j.keyframes, frame)

	evicted := make([]KeyframeEviction, 0)
	if j.maxAge > 0 {
		cutoff := frame.RecordedAt.Add(-j.maxAge)
		idx := 0
		for idx < len(j.keyframes) {
			if !j.keyframes[idx].RecordedAt.Before(cutoff) {
				break
			}
			evicted = append(evicted, KeyframeEviction{
				Seq:    j.keyframes[idx].Seq,
				Tick:   j.keyframes[idx].Tick,
				Reason: "expired",
			})
			idx++
		}
		if idx > 0 {
			copy(j.keyframes, j.keyframes[idx:])
			j.keyframes = j.keyframes[:len(j.keyframes)-idx]
		}
	}

	if len(j.keyframes) > j.maxFrames {
		overflow := len(j.keyframes) - j.maxFrames
		for i := 0; i < overflow; i++ {
			evicted = append(evicted, KeyframeEviction{
				Seq:    j.keyframes[i].Seq,
				Tick:   j.keyframes[i].Tick,
				Reason: "count",
			})
		}
		copy(j.keyframes, j.keyframes[overflow:])
		j.keyframes = j.keyframes[:len(j.keyframes)-overflow]
	}

	size := len(j.keyframes)
	result := KeyframeRecordResult{Size: size, Evicted: evicted}
	if size > 0 {
		result.OldestSeq = j.keyframes[0].Seq
		result.NewestSeq = j.keyframes[size-1].Seq
	}
	return result
}

// KeyframeBySequence returns the keyframe recorded at the given sequence.
func (j *Journal) KeyframeBySequence(seq uint64) (Keyframe, bool) {
	if seq == 0 {
		return Keyframe{}, false
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	for _, frame := range j.keyframes {
		if frame.Seq == seq {
			return frame, true
		}
	}
	return Keyframe{}, false
}

// LatestKeyframe returns the most recently recorded keyframe.
func (j *Journal) LatestKeyframe() (Keyframe, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.keyframes) == 0 {
		return Keyframe{}, false
	}
	return j.keyframes[len(j.keyframes)-1], true
}

// KeyframeWindow reports the current retention window.
func (j *Journal) KeyframeWindow() (size int, oldest, newest uint64) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	size = len(j.keyframes)
	if size == 0 {
		return size, 0, 0
	}
	return size, j.keyframes[0].Seq, j.keyframes[size-1].Seq
}

func (j *Journal) recordDropLocked(metric string) {
	if j.telemetry == nil || metric == "" {
		return
	}
	j.telemetry.RecordJournalDrop(metric)
}
