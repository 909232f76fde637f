// Package types provides shared type definitions used across the playerd daemon.
package types

// Track is an immutable catalog record owned by the remote library.
type Track struct {
	ID          int64    `json:"id" db:"id"`
	Title       string   `json:"title" db:"title"`
	Artist      string   `json:"artist,omitempty" db:"artist"`
	Album       string   `json:"album,omitempty" db:"album"`
	Genre       string   `json:"genre,omitempty" db:"genre"`
	DurationMs  int64    `json:"duration_ms,omitempty" db:"duration_ms"`
	// LoudnessGainDB is the per-track normalization hint in dB, measured
	// server-side (EBU R128). Nil when the track has not been analyzed.
	LoudnessGainDB *float64 `json:"loudness_gain_db,omitempty" db:"loudness_gain_db"`
}

// RadioStation is a continuous internet stream, an alternate playable unit.
// A station has no duration and no queue semantics.
type RadioStation struct {
	UUID    string `json:"stationuuid"`
	Name    string `json:"name"`
	URL     string `json:"url"`
	Genre   string `json:"genre,omitempty"`
	Country string `json:"country,omitempty"`
	LogoURL string `json:"logo_url,omitempty"`
}

// LyricsResult is the lyric lookup response for a track.
type LyricsResult struct {
	Found        bool   `json:"found"`
	Synced       bool   `json:"synced,omitempty"`
	SyncedLyrics string `json:"syncedLyrics,omitempty"`
	PlainLyrics  string `json:"plainLyrics,omitempty"`
	Message      string `json:"message,omitempty"`
}

// PlayerSnapshot is the wire shape of the persisted player state.
type PlayerSnapshot struct {
	CurrentTrackID *int64  `json:"current_track_id"`
	PositionMs     int64   `json:"position_ms"`
	Volume         float64 `json:"volume"`
	ShuffleEnabled bool    `json:"shuffle_enabled"`
	RepeatMode     string  `json:"repeat_mode"`
}

// RadioPlaylist is a server-generated radio queue seeded by a track.
type RadioPlaylist struct {
	PlaylistID string  `json:"playlist_id"`
	Tracks     []Track `json:"tracks"`
}

// RepeatMode represents the repeat behavior
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the string representation of the repeat mode
func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// ParseRepeatMode parses a string into a RepeatMode
func ParseRepeatMode(s string) RepeatMode {
	switch s {
	case "one":
		return RepeatOne
	case "all":
		return RepeatAll
	default:
		return RepeatNone
	}
}

// Next rotates none -> all -> one -> none.
func (r RepeatMode) Next() RepeatMode {
	switch r {
	case RepeatNone:
		return RepeatAll
	case RepeatAll:
		return RepeatOne
	default:
		return RepeatNone
	}
}
