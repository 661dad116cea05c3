package platform

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// URL limits and patterns
const (
	MaxURLLength            = 2048
	PlaylistQueryKey        = "list"
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

var videoURLPattern = regexp.MustCompile(`^(https?://)?(www\.|m\.|music\.)?(youtube|youtu|youtube-nocookie)\.(com|be)/.+$`)

// ErrInvalidURL is returned for URLs outside the accepted source hosts
var ErrInvalidURL = errors.New("please enter a valid YouTube URL")

// ValidateVideoURL checks the URL against the accepted source-host patterns
func ValidateVideoURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ErrInvalidURL
	}
	if len(raw) > MaxURLLength {
		return fmt.Errorf("%w: URL is too long", ErrInvalidURL)
	}
	if strings.ContainsAny(raw, " \t\r\n") {
		return fmt.Errorf("%w: URL contains whitespace", ErrInvalidURL)
	}
	if !videoURLPattern.MatchString(raw) {
		return ErrInvalidURL
	}
	if strings.Contains(raw, "://") {
		if _, err := url.Parse(raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidURL, err)
		}
	}
	return nil
}

// IsPlaylistURL checks if the URL carries a non-empty list query parameter
func IsPlaylistURL(raw string) bool {
	id, err := ExtractPlaylistID(raw)
	return err == nil && id != ""
}

// ExtractPlaylistID extracts the playlist ID from a YouTube playlist URL.
// Supported forms:
//   - https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&start_radio=1
//   - https://www.youtube.com/playlist?list=PLAYLIST_ID
func ExtractPlaylistID(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse playlist URL: %w", err)
	}

	query := u.Query()
	if !query.Has(PlaylistQueryKey) {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}

	playlistID := query.Get(PlaylistQueryKey)
	if playlistID == "" {
		return "", fmt.Errorf("empty playlist ID")
	}
	return playlistID, nil
}
