package model

import (
	"time"
)

// PlaylistEntry represents a single video listed in a playlist
type PlaylistEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Duration string `json:"duration"`
	URL      string `json:"url"`
}

// Playlist represents a playlist resolved for the read-only listing endpoint
type Playlist struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	URL       string          `json:"url"`
	Entries   []PlaylistEntry `json:"entries"`
	Total     int             `json:"total"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// NewPlaylist creates a new playlist instance
func NewPlaylist(id, url string) *Playlist {
	return &Playlist{
		ID:        id,
		URL:       url,
		Entries:   make([]PlaylistEntry, 0),
		FetchedAt: time.Now(),
	}
}

// AddEntry appends an entry, skipping duplicates by video ID
func (p *Playlist) AddEntry(entry PlaylistEntry) {
	for _, existing := range p.Entries {
		if existing.ID == entry.ID {
			return
		}
	}
	p.Entries = append(p.Entries, entry)
	p.Total = len(p.Entries)
}
