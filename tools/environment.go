package tools

import (
	"context"
	"time"

	"github.com/finchkit/finch/core"
)

// EnvironmentInput is empty; the tool reports ambient session context.
type EnvironmentInput struct{}

// EnvironmentOutput describes the session environment.
type EnvironmentOutput struct {
	TimeOfDay string `json:"time_of_day"`
	Weekday   string `json:"weekday"`
	SessionID string `json:"session_id,omitempty"`
	ChildName string `json:"child_name,omitempty"`
}

// NewEnvironmentTool reports time-of-day and session context so responses
// can reference bedtime, mornings, or weekends naturally.
func NewEnvironmentTool(now func() time.Time) core.ToolHandle {
	if now == nil {
		now = time.Now
	}
	tool := New("get_environment",
		"Get the current time of day and session context for the child.",
		func(ctx context.Context, in EnvironmentInput, meta core.ToolMeta) (EnvironmentOutput, error) {
			t := now()
			return EnvironmentOutput{
				TimeOfDay: timeOfDay(t.Hour()),
				Weekday:   t.Weekday().String(),
				SessionID: meta.SessionID,
				ChildName: meta.Profile.Name,
			}, nil
		})
	return tool
}

func timeOfDay(hour int) string {
	switch {
	case hour < 6:
		return "night"
	case hour < 12:
		return "morning"
	case hour < 18:
		return "afternoon"
	default:
		return "evening"
	}
}
