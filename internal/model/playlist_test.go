package model

import "testing"

func TestPlaylist_AddEntry(t *testing.T) {
	playlist := NewPlaylist("PL123", "https://www.youtube.com/playlist?list=PL123")

	playlist.AddEntry(PlaylistEntry{ID: "a", Title: "First"})
	playlist.AddEntry(PlaylistEntry{ID: "b", Title: "Second"})
	playlist.AddEntry(PlaylistEntry{ID: "a", Title: "First again"})

	if playlist.Total != 2 {
		t.Errorf("Expected 2 entries, got %d", playlist.Total)
	}
	if playlist.Entries[0].Title != "First" {
		t.Errorf("Expected first-seen entry to be kept, got '%s'", playlist.Entries[0].Title)
	}
}
