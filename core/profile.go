package core

// Band groups children into developmental bands for content adaptation and
// safety thresholds.
type Band string

const (
	BandEarlyChildhood  Band = "early_childhood"  // 3-5
	BandMiddleChildhood Band = "middle_childhood" // 6-8
	BandLateChildhood   Band = "late_childhood"   // 9-12
	BandEarlyTeen       Band = "early_teen"       // 13-15
	BandLateTeen        Band = "late_teen"        // 16-17
)

// BandForAge maps an age in years to its developmental band.
func BandForAge(age int) Band {
	switch {
	case age <= 5:
		return BandEarlyChildhood
	case age <= 8:
		return BandMiddleChildhood
	case age <= 12:
		return BandLateChildhood
	case age <= 15:
		return BandEarlyTeen
	default:
		return BandLateTeen
	}
}

// ChildProfile carries the read-only per-child context injected into the
// planner and age adapter. The profile store owns the data; the core never
// mutates it.
type ChildProfile struct {
	ChildID       string   `json:"child_id"`
	Name          string   `json:"name"`
	Age           int      `json:"age"`
	Band          Band     `json:"band"`
	Interests     []string `json:"interests,omitempty"`
	AllowedTopics []string `json:"allowed_topics,omitempty"`
	BlockedTopics []string `json:"blocked_topics,omitempty"`
	MusicEnabled  bool     `json:"music_enabled"`
}

// Young reports whether the profile falls in a band that gets simplified
// output and stricter thresholds.
func (p ChildProfile) Young() bool {
	return p.Band == BandEarlyChildhood || p.Band == BandMiddleChildhood
}
