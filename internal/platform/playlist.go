package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/yt-fetchd/internal/model"
)

// Timeout constants
const (
	DefaultPlaylistParseTimeout = 60 * time.Second
)

// Default values
const (
	DefaultDuration      = "Unknown"
	DefaultPlaylistTitle = "Untitled Playlist"
	DefaultTitleSuffix   = " - Playlist"
	MaxTitleLength       = 50
	TitleTruncateSuffix  = "..."
)

// PlaylistLister resolves the entries of a YouTube playlist using the ytdlp library
type PlaylistLister struct {
	timeout time.Duration
}

// NewPlaylistLister creates a new playlist lister
func NewPlaylistLister() *PlaylistLister {
	return &PlaylistLister{
		timeout: DefaultPlaylistParseTimeout,
	}
}

// SetTimeout sets the timeout for playlist listing
func (p *PlaylistLister) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// ListPlaylist returns the entries of the playlist referenced by url
func (p *PlaylistLister) ListPlaylist(ctx context.Context, url string) (*model.Playlist, error) {
	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist items: %w", err)
	}

	playlist := model.NewPlaylist(playlistID, url)
	for _, it := range items {
		playlist.AddEntry(model.PlaylistEntry{
			ID:       it.VideoID,
			Title:    it.Title,
			Duration: DefaultDuration,
			URL:      fmt.Sprintf(YouTubeVideoURLTemplate, it.VideoID),
		})
	}
	playlist.Title = playlistTitle(playlist.Entries, playlistID)
	return playlist, nil
}

// playlistTitle derives a title from the first entry
func playlistTitle(entries []model.PlaylistEntry, playlistID string) string {
	if len(entries) == 0 {
		if playlistID == "" {
			return DefaultPlaylistTitle
		}
		return fmt.Sprintf("Playlist %s", playlistID)
	}

	firstTitle := strings.TrimSpace(entries[0].Title)
	if firstTitle == "" {
		return DefaultPlaylistTitle
	}
	if runes := []rune(firstTitle); len(runes) > MaxTitleLength {
		firstTitle = string(runes[:MaxTitleLength]) + TitleTruncateSuffix
	}
	return firstTitle + DefaultTitleSuffix
}
