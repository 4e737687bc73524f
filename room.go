package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"playroom/server/internal/events"
	"playroom/server/internal/journal"
	"playroom/server/internal/model"
)

// Room pairs one replicated session document with the journal that orders
// and dedupes its broadcast events. The room mutex serializes every
// document mutation; the document itself is not concurrency safe.
type Room struct {
	mu      sync.Mutex
	name    string
	rules   model.Ruleset
	doc     *model.Document
	journal *journal.Journal
}

func newRoom(name string, mode model.Mode, clock func() time.Time, logger model.Logger, telemetry journal.Telemetry) *Room {
	rules := model.RulesetFor(mode)
	j := journal.New(journalHistoryLimit, keyframeCapacity, keyframeMaxAge)
	if telemetry != nil {
		j.AttachTelemetry(telemetry)
	}
	return &Room{
		name:    name,
		rules:   rules,
		doc:     model.NewDocument("session-"+uuid.NewString(), rules, clock, logger),
		journal: j,
	}
}

func (r *Room) Name() string { return r.name }

func (r *Room) Mode() model.Mode { return r.rules.Mode }

// Apply decodes and applies one envelope. The journal suppresses event ids
// that already landed, so a transport redelivery reports duplicate without
// touching the document.
func (r *Room) Apply(env events.Envelope) (model.Outcome, uint64, error) {
	decoded, err := events.Decode(env)
	if err != nil {
		return model.Outcome{Reason: RejectMalformed}, 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.journal.Seen(env.ID) {
		return model.Outcome{Reason: model.RejectDuplicate}, r.journal.Sequence(), nil
	}
	outcome := r.doc.Apply(decoded)
	if !outcome.Applied {
		return outcome, 0, nil
	}
	entry, ok := r.journal.Append(env)
	if !ok {
		return model.Outcome{Reason: model.RejectDuplicate}, r.journal.Sequence(), nil
	}
	return outcome, entry.Seq, nil
}

// Snapshot copies the full document state with its journal sequence.
func (r *Room) Snapshot() (model.Snapshot, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Snapshot(), r.journal.Sequence()
}

// SweepTyping purges stale typing indicators, returning how many dropped.
func (r *Room) SweepTyping() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.SweepTyping()
}

func (r *Room) OnlineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.doc.OnlineUsers())
}

func (r *Room) Player(userID string) (model.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Player(userID)
}

func (r *Room) Post(postID string) (model.Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, post := range r.doc.Posts() {
		if post.ID == postID {
			return post, true
		}
	}
	return model.Post{}, false
}

// RecordKeyframe stores a snapshot keyframe at the current sequence.
func (r *Room) RecordKeyframe(tick uint64) journal.KeyframeRecordResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	frame := journal.Keyframe{
		Seq:      r.journal.Sequence(),
		Tick:     tick,
		Snapshot: r.doc.Snapshot(),
	}
	return r.journal.RecordKeyframe(frame)
}

func (r *Room) KeyframeBySequence(seq uint64) (journal.Keyframe, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal.KeyframeBySequence(seq)
}

func (r *Room) EntriesSince(seq uint64) ([]journal.Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal.EntriesSince(seq)
}

func (r *Room) ConsumeResyncHint() (journal.ResyncSignal, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.journal.ConsumeResyncHint()
}
