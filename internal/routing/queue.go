// Package routing implements the priority scheduler over routing items.
// It is the single source of truth for next-speaker selection: branch
// accounting, anti-starvation, P1 preemption, and overflow protection all
// live here.
package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/nextlevelbuilder/agentchat/internal/markers"
	"github.com/nextlevelbuilder/agentchat/pkg/protocol"
)

// Defaults for queue protection limits.
const (
	DefaultMaxQueueSize  = 50
	DefaultMaxBranchSize = 10
	DefaultMaxLocalSeq   = 5
)

// Item is one scheduled routing instruction: dispatch a turn to a member in
// reply to a parent message.
type Item struct {
	ID               string
	TargetMemberID   string
	ParentMessageID  string
	TriggerMessageID string
	Intent           markers.Intent
	EnqueuedAt       time.Time

	seq int64 // FIFO tiebreaker
}

// SkipReason explains why an enqueue input was not admitted.
type SkipReason string

const (
	SkipDuplicate         SkipReason = "duplicate"
	SkipAdjacentDuplicate SkipReason = "adjacent_duplicate"
	SkipQueueOverflow     SkipReason = "queue_overflow"
)

// Target is one enqueue input.
type Target struct {
	MemberID string
	Intent   markers.Intent
}

// Skipped pairs a rejected target with its reason.
type Skipped struct {
	Target Target
	Reason SkipReason
}

// EnqueueRequest admits routing items for one parent message.
// Unresolved carries addressee strings that matched no member; they are
// surfaced on the queue update for observability.
type EnqueueRequest struct {
	ParentMessageID  string
	TriggerMessageID string
	Targets          []Target
	Unresolved       []string
}

// EnqueueResult reports what was admitted and what was skipped.
type EnqueueResult struct {
	Enqueued []Item
	Skipped  []Skipped
}

// Update is emitted whenever the pending set changes.
type Update struct {
	Stats      Stats
	Unresolved []string
}

// Protection is emitted when a limit fires.
type Protection struct {
	Type            string // protocol.ProtectionQueueOverflow | ProtectionBranchOverflow
	ParentMessageID string
	TargetMemberID  string
}

// Stats summarizes the pending set.
type Stats struct {
	TotalPending   int
	ByIntent       IntentCounts
	LocalQueueSize int
}

// IntentCounts breaks pending items down by intent.
type IntentCounts struct {
	P1 int
	P2 int
	P3 int
}

// Config tunes the queue. Zero values take the defaults; callbacks are
// optional.
type Config struct {
	MaxQueueSize  int
	MaxBranchSize int
	MaxLocalSeq   int

	OnUpdate     func(Update)
	OnProtection func(Protection)
}

// Queue is the routing scheduler. Safe for concurrent use; in practice all
// mutation happens on the coordinator goroutine.
type Queue struct {
	mu sync.Mutex

	cfg     Config
	pending []Item
	// executing tracks items handed out by SelectNext until CompleteItem.
	executing map[string]Item

	lastCompletedMessageID string
	localConsecutive       int
	nextSeq                int64
	nextItemID             int64
}

// New creates a queue with the given config.
func New(cfg Config) *Queue {
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = DefaultMaxQueueSize
	}
	if cfg.MaxBranchSize <= 0 {
		cfg.MaxBranchSize = DefaultMaxBranchSize
	}
	if cfg.MaxLocalSeq <= 0 {
		cfg.MaxLocalSeq = DefaultMaxLocalSeq
	}
	return &Queue{cfg: cfg, executing: make(map[string]Item)}
}

// Enqueue admits one routing item per target, applying dedup, adjacency,
// and overflow protection. One update event fires if anything changed.
func (q *Queue) Enqueue(req EnqueueRequest) EnqueueResult {
	q.mu.Lock()

	var res EnqueueResult
	var protections []Protection
	for _, t := range req.Targets {
		intent := t.Intent
		if intent == "" {
			intent = markers.IntentReply
		}

		if q.hasPendingLocked(req.ParentMessageID, t.MemberID, intent) {
			res.Skipped = append(res.Skipped, Skipped{Target: t, Reason: SkipDuplicate})
			continue
		}
		if n := len(q.pending); n > 0 && q.pending[n-1].TargetMemberID == t.MemberID {
			res.Skipped = append(res.Skipped, Skipped{Target: t, Reason: SkipAdjacentDuplicate})
			continue
		}
		if len(q.pending)+1 > q.cfg.MaxQueueSize {
			res.Skipped = append(res.Skipped, Skipped{Target: t, Reason: SkipQueueOverflow})
			protections = append(protections, Protection{
				Type:            protocol.ProtectionQueueOverflow,
				ParentMessageID: req.ParentMessageID,
				TargetMemberID:  t.MemberID,
			})
			continue
		}
		if q.branchSizeLocked(req.ParentMessageID)+1 > q.cfg.MaxBranchSize {
			// Deep branches still enqueue, but only as low-priority extends.
			intent = markers.IntentExtend
			protections = append(protections, Protection{
				Type:            protocol.ProtectionBranchOverflow,
				ParentMessageID: req.ParentMessageID,
				TargetMemberID:  t.MemberID,
			})
		}

		q.nextSeq++
		q.nextItemID++
		item := Item{
			ID:               fmt.Sprintf("route-%d", q.nextItemID),
			TargetMemberID:   t.MemberID,
			ParentMessageID:  req.ParentMessageID,
			TriggerMessageID: req.TriggerMessageID,
			Intent:           intent,
			EnqueuedAt:       time.Now(),
			seq:              q.nextSeq,
		}
		q.pending = append(q.pending, item)
		res.Enqueued = append(res.Enqueued, item)
	}

	changed := len(res.Enqueued) > 0
	update := Update{Stats: q.statsLocked(), Unresolved: req.Unresolved}
	q.mu.Unlock()

	if q.cfg.OnProtection != nil {
		for _, p := range protections {
			q.cfg.OnProtection(p)
		}
	}
	if changed && q.cfg.OnUpdate != nil {
		q.cfg.OnUpdate(update)
	}
	return res
}

func (q *Queue) hasPendingLocked(parent, member string, intent markers.Intent) bool {
	for i := range q.pending {
		p := &q.pending[i]
		if p.ParentMessageID == parent && p.TargetMemberID == member && p.Intent == intent {
			return true
		}
	}
	return false
}

func (q *Queue) branchSizeLocked(parent string) int {
	n := 0
	for i := range q.pending {
		if q.pending[i].ParentMessageID == parent {
			n++
		}
	}
	return n
}

// MarkCompleted records the message produced by the last finished turn.
// Idempotent; pending items are untouched.
func (q *Queue) MarkCompleted(messageID string) {
	q.mu.Lock()
	q.lastCompletedMessageID = messageID
	q.mu.Unlock()
}

// CompleteItem retires an item previously returned by SelectNext.
func (q *Queue) CompleteItem(itemID string) {
	q.mu.Lock()
	delete(q.executing, itemID)
	q.mu.Unlock()
}

// DropAll removes every pending item.
func (q *Queue) DropAll() int {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	update := Update{Stats: q.statsLocked()}
	q.mu.Unlock()

	if n > 0 && q.cfg.OnUpdate != nil {
		q.cfg.OnUpdate(update)
	}
	return n
}

// DropMembers removes every pending item targeting any of the member ids.
func (q *Queue) DropMembers(memberIDs []string) int {
	drop := make(map[string]bool, len(memberIDs))
	for _, id := range memberIDs {
		drop[id] = true
	}

	q.mu.Lock()
	kept := q.pending[:0]
	dropped := 0
	for _, it := range q.pending {
		if drop[it.TargetMemberID] {
			dropped++
			continue
		}
		kept = append(kept, it)
	}
	q.pending = kept
	update := Update{Stats: q.statsLocked()}
	q.mu.Unlock()

	if dropped > 0 && q.cfg.OnUpdate != nil {
		q.cfg.OnUpdate(update)
	}
	return dropped
}

// Clear empties the pending set but preserves lastCompletedMessageID.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.pending = nil
	q.executing = make(map[string]Item)
	q.mu.Unlock()
}

// Stats returns a snapshot of the pending set.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statsLocked()
}

func (q *Queue) statsLocked() Stats {
	s := Stats{TotalPending: len(q.pending)}
	for i := range q.pending {
		switch q.pending[i].Intent {
		case markers.IntentInterrupt:
			s.ByIntent.P1++
		case markers.IntentExtend:
			s.ByIntent.P3++
		default:
			s.ByIntent.P2++
		}
		if q.pending[i].ParentMessageID == q.lastCompletedMessageID {
			s.LocalQueueSize++
		}
	}
	return s
}
