package memory

import (
	"fmt"
	"testing"

	"github.com/finchkit/finch/core"
)

func TestTurnsAreBounded(t *testing.T) {
	s := NewInMemory(3)
	for i := 0; i < 5; i++ {
		s.AddTurn("c1", Turn{Role: "child", Content: fmt.Sprintf("msg-%d", i)})
	}
	turns := s.RecentTurns("c1", 10)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	if turns[0].Content != "msg-2" || turns[2].Content != "msg-4" {
		t.Fatalf("wrong eviction order: %+v", turns)
	}
}

func TestRecentTurnsLimit(t *testing.T) {
	s := NewInMemory(0)
	for i := 0; i < 10; i++ {
		s.AddTurn("c1", Turn{Role: "child", Content: fmt.Sprintf("msg-%d", i)})
	}
	turns := s.RecentTurns("c1", 2)
	if len(turns) != 2 || turns[1].Content != "msg-9" {
		t.Fatalf("unexpected turns: %+v", turns)
	}
}

func TestChildrenAreIsolated(t *testing.T) {
	s := NewInMemory(0)
	s.AddTurn("c1", Turn{Role: "child", Content: "hello"})
	if got := s.RecentTurns("c2", 10); len(got) != 0 {
		t.Fatalf("expected no turns for c2, got %+v", got)
	}
}

func TestTraceAppendAssignsIDs(t *testing.T) {
	s := NewInMemory(0)
	s.AppendTrace(TraceRecord{ChildID: "c1", RequestID: "r1", State: "responded"})
	traces := s.Traces("c1")
	if len(traces) != 1 {
		t.Fatalf("expected 1 trace, got %d", len(traces))
	}
	if traces[0].ID == "" || traces[0].CreatedAt.IsZero() {
		t.Fatalf("trace not stamped: %+v", traces[0])
	}
}

func TestSafetyEventLog(t *testing.T) {
	s := NewInMemory(0)
	s.LogSafetyEvent(SafetyEvent{
		ChildID:  "c1",
		Content:  "blocked input",
		Decision: core.Decision{Action: core.ActionBlock, TriggeringCategory: core.CategoryDangerous},
	})
	events := s.SafetyEvents("c1")
	if len(events) != 1 || events[0].Decision.Action != core.ActionBlock {
		t.Fatalf("unexpected events: %+v", events)
	}
}
