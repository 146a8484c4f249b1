package tools

import (
	"context"
	"sync"
	"time"

	"github.com/finchkit/finch/core"
)

// DashboardInput selects the dashboard action.
type DashboardInput struct {
	Action    string         `json:"action" enum:"log_event,get_settings,get_logs" description:"Action to perform"`
	EventType string         `json:"event_type,omitempty" description:"Type of event to log"`
	EventData map[string]any `json:"event_data,omitempty" description:"Additional event data"`
}

// DashboardOutput carries the action result.
type DashboardOutput struct {
	Logged     bool             `json:"logged,omitempty"`
	EntryID    int              `json:"entry_id,omitempty"`
	Settings   *ParentSettings  `json:"settings,omitempty"`
	TotalLogs  int              `json:"total_logs,omitempty"`
	RecentLogs []DashboardEntry `json:"recent_logs,omitempty"`
}

// ParentSettings is the parent-controlled configuration surface.
type ParentSettings struct {
	MusicEnabled         bool     `json:"music_enabled"`
	MaxSessionMinutes    int      `json:"max_session_minutes"`
	AllowedTopics        []string `json:"allowed_topics"`
	BlockedTopics        []string `json:"blocked_topics"`
	NotificationsEnabled bool     `json:"notifications_enabled"`
}

// DashboardEntry is one logged event.
type DashboardEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	ChildID   string         `json:"child_id,omitempty"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// Dashboard is the in-memory parent oversight store shared by the tool and
// the alert path.
type Dashboard struct {
	mu       sync.Mutex
	logs     []DashboardEntry
	settings ParentSettings
}

// NewDashboard seeds default settings.
func NewDashboard() *Dashboard {
	return &Dashboard{
		settings: ParentSettings{
			MusicEnabled:         true,
			MaxSessionMinutes:    30,
			AllowedTopics:        []string{"science", "nature", "art", "music", "stories"},
			NotificationsEnabled: true,
		},
	}
}

// Log appends an event and returns its entry id.
func (d *Dashboard) Log(childID, eventType string, data map[string]any) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.logs = append(d.logs, DashboardEntry{
		Timestamp: time.Now().UTC(),
		ChildID:   childID,
		Type:      eventType,
		Data:      data,
	})
	return len(d.logs)
}

// Settings returns a copy of the current settings.
func (d *Dashboard) Settings() ParentSettings {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.settings
}

// UpdateSettings replaces the settings, for the parent interface.
func (d *Dashboard) UpdateSettings(s ParentSettings) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settings = s
}

// Recent returns up to n of the newest entries.
func (d *Dashboard) Recent(n int) (entries []DashboardEntry, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	total = len(d.logs)
	start := total - n
	if start < 0 {
		start = 0
	}
	return append([]DashboardEntry(nil), d.logs[start:]...), total
}

// NewParentDashboardTool builds the dashboard tool over a shared store.
func NewParentDashboardTool(dash *Dashboard) core.ToolHandle {
	tool := New("parent_dashboard",
		"Log events for parents, check settings, or retrieve usage information. Used internally to ensure parental oversight of all interactions.",
		func(ctx context.Context, in DashboardInput, meta core.ToolMeta) (DashboardOutput, error) {
			switch in.Action {
			case "log_event":
				eventType := in.EventType
				if eventType == "" {
					eventType = "unknown"
				}
				id := dash.Log(meta.Profile.ChildID, eventType, in.EventData)
				return DashboardOutput{Logged: true, EntryID: id}, nil
			case "get_settings":
				s := dash.Settings()
				return DashboardOutput{Settings: &s}, nil
			case "get_logs":
				entries, total := dash.Recent(20)
				return DashboardOutput{TotalLogs: total, RecentLogs: entries}, nil
			default:
				return DashboardOutput{}, core.NewError(core.ErrToolError, "unknown action: "+in.Action)
			}
		})
	return tool
}
