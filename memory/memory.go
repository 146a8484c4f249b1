// Package memory holds per-child session state: bounded conversation turns,
// the immutable decision-trace log, and safety events. The interface is the
// core's only contract; persistence format belongs to the collaborator that
// implements it.
package memory

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finchkit/finch/core"
)

// Turn is one conversational exchange entry.
type Turn struct {
	Role      string    `json:"role"` // "child" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceRecord is the immutable per-request trace appended after every
// completed or blocked request.
type TraceRecord struct {
	ID          string        `json:"id"`
	RequestID   string        `json:"request_id"`
	ChildID     string        `json:"child_id"`
	SessionID   string        `json:"session_id"`
	State       string        `json:"state"`
	PlanSummary []string      `json:"plan_summary"`
	Decision    core.Decision `json:"decision"`
	CreatedAt   time.Time     `json:"created_at"`
}

// SafetyEvent records one restrictive or degraded decision for later review.
type SafetyEvent struct {
	ID        string        `json:"id"`
	ChildID   string        `json:"child_id"`
	Content   string        `json:"content"`
	Decision  core.Decision `json:"decision"`
	CreatedAt time.Time     `json:"created_at"`
}

// Store is the session memory contract consumed by the orchestrator.
type Store interface {
	AddTurn(childID string, turn Turn)
	RecentTurns(childID string, n int) []Turn
	AppendTrace(record TraceRecord)
	Traces(childID string) []TraceRecord
	LogSafetyEvent(event SafetyEvent)
	SafetyEvents(childID string) []SafetyEvent
}

const defaultMaxTurns = 50

// InMemory is the in-process Store used by tests and the demo CLI.
type InMemory struct {
	mu       sync.Mutex
	maxTurns int
	turns    map[string][]Turn
	traces   map[string][]TraceRecord
	events   map[string][]SafetyEvent
}

// NewInMemory builds an empty store. maxTurns <= 0 selects the default
// episodic bound.
func NewInMemory(maxTurns int) *InMemory {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &InMemory{
		maxTurns: maxTurns,
		turns:    make(map[string][]Turn),
		traces:   make(map[string][]TraceRecord),
		events:   make(map[string][]SafetyEvent),
	}
}

// AddTurn appends a turn, evicting the oldest once the bound is hit.
func (s *InMemory) AddTurn(childID string, turn Turn) {
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.turns[childID], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.turns[childID] = turns
}

// RecentTurns returns up to n of the newest turns, oldest first.
func (s *InMemory) RecentTurns(childID string, n int) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.turns[childID]
	if n > 0 && len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	return append([]Turn(nil), turns...)
}

// AppendTrace stores the record; a missing id gets one assigned.
func (s *InMemory) AppendTrace(record TraceRecord) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[record.ChildID] = append(s.traces[record.ChildID], record)
}

// Traces returns a copy of the child's trace log.
func (s *InMemory) Traces(childID string) []TraceRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TraceRecord(nil), s.traces[childID]...)
}

// LogSafetyEvent stores the event; a missing id gets one assigned.
func (s *InMemory) LogSafetyEvent(event SafetyEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ChildID] = append(s.events[event.ChildID], event)
}

// SafetyEvents returns a copy of the child's safety event log.
func (s *InMemory) SafetyEvents(childID string) []SafetyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SafetyEvent(nil), s.events[childID]...)
}
