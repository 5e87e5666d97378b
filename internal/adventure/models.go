package adventure

import (
	"strings"
	"time"
)

type Adventure struct {
	ID        int64      `json:"id"`
	RemoteID  int64      `json:"remote_id,omitempty"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Waypoints []Waypoint `json:"waypoints"`
}

// HasName reports whether the adventure is usable: a non-blank name is the
// only validity requirement; waypoint count is informational.
func (a Adventure) HasName() bool {
	return strings.TrimSpace(a.Name) != ""
}

type Waypoint struct {
	ID          int64     `json:"id"`
	AdventureID int64     `json:"adventure_id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	Note        *string   `json:"note,omitempty"`
	MediaURI    *string   `json:"media_uri,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Note struct {
	ID          int64     `json:"id"`
	AdventureID int64     `json:"adventure_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	Lat         *float64  `json:"lat,omitempty"`
	Lng         *float64  `json:"lng,omitempty"`
}

type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

type MediaItem struct {
	ID            int64     `json:"id"`
	AdventureID   int64     `json:"adventure_id"`
	FilePath      string    `json:"file_path"`
	ThumbnailPath string    `json:"thumbnail_path"`
	Caption       string    `json:"caption"`
	Kind          MediaKind `json:"kind"`
	Timestamp     time.Time `json:"timestamp"`
	Lat           *float64  `json:"lat,omitempty"`
	Lng           *float64  `json:"lng,omitempty"`
}

// Offloaded reports whether the local payload has already been reclaimed:
// the row survives as history but both path pointers are empty.
func (m MediaItem) Offloaded() bool {
	return m.FilePath == "" && m.ThumbnailPath == ""
}
