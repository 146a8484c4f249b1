package tools

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/finchkit/finch/core"
)

// MusicInput selects a playlist mood and playback action.
type MusicInput struct {
	Mood   string `json:"mood" enum:"fun,calm,learning,adventure" description:"The mood or type of music to play"`
	Action string `json:"action,omitempty" enum:"play,pause,skip,stop" description:"Playback action to perform"`
}

// MusicOutput reports playback status.
type MusicOutput struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Mood    string `json:"mood,omitempty"`
}

type song struct {
	title  string
	artist string
}

// Pre-approved child-safe playlists. A production deployment would integrate
// a streaming service with parental controls.
var musicLibrary = map[string][]song{
	"fun": {
		{"Happy Dance", "Kids Bop"},
		{"Jump Around", "Children's Favorites"},
		{"Sunny Day", "Rainbow Singers"},
	},
	"calm": {
		{"Peaceful Dreams", "Lullaby Land"},
		{"Ocean Waves", "Nature Sounds"},
		{"Starlight", "Bedtime Beats"},
	},
	"learning": {
		{"ABC Alphabet Song", "Learning Tunes"},
		{"Count to Ten", "Math Melodies"},
		{"Colors of the Rainbow", "Science Singers"},
	},
	"adventure": {
		{"Pirate Ship", "Adventure Kids"},
		{"Space Explorer", "Cosmic Tunes"},
		{"Jungle Safari", "Wild Beats"},
	},
}

// NewMusicTool builds the playback tool. Playback is refused when the parent
// has disabled music for the child.
func NewMusicTool() core.ToolHandle {
	tool := New("play_music",
		"Play music for the child. Can play songs by mood (fun, calm, learning, adventure). All music is pre-approved and safe.",
		func(ctx context.Context, in MusicInput, meta core.ToolMeta) (MusicOutput, error) {
			if !meta.Profile.MusicEnabled {
				return MusicOutput{}, core.NewError(core.ErrToolError, "music is disabled for this child")
			}
			switch in.Action {
			case "stop":
				return MusicOutput{Status: "stopped", Message: "Music stopped."}, nil
			case "pause":
				return MusicOutput{Status: "paused", Message: "Music paused."}, nil
			}
			playlist, ok := musicLibrary[in.Mood]
			if !ok {
				playlist = musicLibrary["fun"]
			}
			s := pickSong(playlist, meta.SessionID, in.Action == "skip")
			return MusicOutput{
				Status:  "playing",
				Message: fmt.Sprintf("Now playing %q by %s!", s.title, s.artist),
				Title:   s.title,
				Artist:  s.artist,
				Mood:    in.Mood,
			}, nil
		})
	return tool
}

// pickSong chooses per session so repeated plays in one session stay stable
// while skip advances to the next track.
func pickSong(playlist []song, sessionID string, skip bool) song {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	idx := int(h.Sum32()) % len(playlist)
	if idx < 0 {
		idx += len(playlist)
	}
	if skip {
		idx = (idx + 1) % len(playlist)
	}
	return playlist[idx]
}
