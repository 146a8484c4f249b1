// Package review holds the human-review queue: gray-area content whose
// classifier verdicts disagree, arrive with low confidence, or fail outright
// is parked here for a person to decide. The affected content stays blocked
// while the item is pending.
package review

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finchkit/finch/core"
)

// Status tracks an item through its review lifecycle.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Priority orders pending items for reviewers.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Item is one queued piece of content awaiting human judgment.
type Item struct {
	ID        string         `json:"id"`
	ChildID   string         `json:"child_id"`
	Content   string         `json:"content"`
	Verdicts  []core.Verdict `json:"verdicts"`
	Priority  Priority       `json:"priority"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`

	ReviewerID string      `json:"reviewer_id,omitempty"`
	ReviewedAt time.Time   `json:"reviewed_at,omitempty"`
	Decision   core.Action `json:"decision,omitempty"`
	Notes      string      `json:"notes,omitempty"`
}

const (
	defaultMaxSize     = 1000
	defaultExpireAfter = 24 * time.Hour
)

// Queue is a bounded in-memory review queue. When full, the oldest item is
// evicted; pending items past the expiry window resolve to the configured
// expire action.
type Queue struct {
	mu           sync.Mutex
	items        []*Item
	byID         map[string]*Item
	maxSize      int
	expireAfter  time.Duration
	expireAction core.Action
	now          func() time.Time
}

// QueueOption configures the queue.
type QueueOption func(*Queue)

// WithMaxSize bounds the queue length.
func WithMaxSize(n int) QueueOption {
	return func(q *Queue) { q.maxSize = n }
}

// WithExpireAfter sets how long pending items wait before auto-resolving.
func WithExpireAfter(d time.Duration) QueueOption {
	return func(q *Queue) { q.expireAfter = d }
}

// WithExpireAction sets the decision applied to expired items.
func WithExpireAction(a core.Action) QueueOption {
	return func(q *Queue) { q.expireAction = a }
}

// WithClock fixes the time source.
func WithClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

// NewQueue builds a review queue. Defaults: 1000 items, 24h expiry, expired
// items resolve to block.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		byID:         make(map[string]*Item),
		maxSize:      defaultMaxSize,
		expireAfter:  defaultExpireAfter,
		expireAction: core.ActionBlock,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PriorityFor derives an item's priority from its verdicts: critical
// severity is urgent, high severity is high, medium severity or low
// confidence or a failed classifier is medium, anything else low.
func PriorityFor(verdicts []core.Verdict) Priority {
	worst := core.SeverityNone
	lowConfidence := false
	anyFailed := false
	for _, v := range verdicts {
		if v.Failed {
			anyFailed = true
			continue
		}
		if v.Severity.Rank() > worst.Rank() {
			worst = v.Severity
		}
		if v.Confidence < 0.5 {
			lowConfidence = true
		}
	}
	switch {
	case worst == core.SeverityCritical:
		return PriorityUrgent
	case worst.Rank() >= core.SeverityHigh.Rank():
		return PriorityHigh
	case worst.Rank() >= core.SeverityMedium.Rank() || lowConfidence || anyFailed:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// Enqueue adds content to the queue and returns the item id. Implements the
// engine's review sink.
func (q *Queue) Enqueue(content, childID string, verdicts []core.Verdict) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	item := &Item{
		ID:        uuid.NewString(),
		ChildID:   childID,
		Content:   content,
		Verdicts:  append([]core.Verdict(nil), verdicts...),
		Priority:  PriorityFor(verdicts),
		Status:    StatusPending,
		CreatedAt: q.now(),
	}
	if len(q.items) >= q.maxSize {
		evicted := q.items[0]
		q.items = q.items[1:]
		delete(q.byID, evicted.ID)
	}
	q.items = append(q.items, item)
	q.byID[item.ID] = item
	return item.ID
}

// Pending returns up to limit pending items, highest priority first, oldest
// first within a priority. Expired items are resolved before filtering.
func (q *Queue) Pending(limit int) []Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()

	pending := make([]Item, 0, limit)
	for _, item := range q.items {
		if item.Status == StatusPending {
			pending = append(pending, *item)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority.rank() != pending[j].Priority.rank() {
			return pending[i].Priority.rank() > pending[j].Priority.rank()
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending
}

// Submit records a reviewer's decision for a pending item. Allow approves;
// any restrictive action rejects.
func (q *Queue) Submit(id string, decision core.Action, reviewerID, notes string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, ok := q.byID[id]
	if !ok {
		return core.NewError(core.ErrBadRequest, "unknown review item "+id)
	}
	if item.Status != StatusPending {
		return core.NewError(core.ErrBadRequest, "review item "+id+" is already "+string(item.Status))
	}
	if decision == core.ActionAllow {
		item.Status = StatusApproved
	} else {
		item.Status = StatusRejected
	}
	item.Decision = decision
	item.ReviewerID = reviewerID
	item.ReviewedAt = q.now()
	item.Notes = notes
	return nil
}

// Decision reports the resolved action for an item. The second return is
// false while the item is pending or unknown.
func (q *Queue) Decision(id string) (core.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()

	item, ok := q.byID[id]
	if !ok || item.Status == StatusPending {
		return "", false
	}
	return item.Decision, true
}

// PendingCount reports the number of items awaiting review.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.expireLocked()

	n := 0
	for _, item := range q.items {
		if item.Status == StatusPending {
			n++
		}
	}
	return n
}

func (q *Queue) expireLocked() {
	cutoff := q.now().Add(-q.expireAfter)
	for _, item := range q.items {
		if item.Status == StatusPending && item.CreatedAt.Before(cutoff) {
			item.Status = StatusExpired
			item.Decision = q.expireAction
		}
	}
}
