package models

// LikedSongs is the playlist label given to saved tracks on export.
const LikedSongs = "Liked Songs"

// Track represents a song from a music service or a tracks CSV row.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	URL        string `json:"url,omitempty"`
	Popularity int    `json:"popularity,omitempty"`
	AddedAt    string `json:"added_at,omitempty"`
	Playlist   string `json:"playlist,omitempty"`
	PlaylistID string `json:"playlist_id,omitempty"`
}

// Album represents a saved album.
type Album struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url,omitempty"`
}

// Artist represents a followed artist.
type Artist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Playlist represents playlist metadata.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Owner       string `json:"owner,omitempty"`
	TrackCount  int    `json:"track_count"`
	Public      bool   `json:"public"`
	URL         string `json:"url,omitempty"`
}

// PlaylistExport is a playlist together with its tracks.
type PlaylistExport struct {
	Playlist Playlist `json:"playlist"`
	Tracks   []Track  `json:"tracks"`
}

// Failure is one entry of the failed-tracks report.
type Failure struct {
	Track    string `json:"track"`
	Artist   string `json:"artist"`
	Playlist string `json:"playlist"`
	Reason   string `json:"reason,omitempty"`
}

// User identifies the account a service session belongs to.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Country     string `json:"country,omitempty"`
}
