package platform

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateVideoURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "watch url", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		{name: "short url", url: "https://youtu.be/dQw4w9WgXcQ"},
		{name: "without scheme", url: "youtube.com/watch?v=abc"},
		{name: "nocookie embed", url: "https://www.youtube-nocookie.com/embed/abc"},
		{name: "mobile host", url: "https://m.youtube.com/watch?v=abc"},
		{name: "music host", url: "https://music.youtube.com/watch?v=abc"},
		{name: "empty", url: "", wantErr: true},
		{name: "blank", url: "   ", wantErr: true},
		{name: "other host", url: "https://vimeo.com/12345", wantErr: true},
		{name: "no path", url: "https://www.youtube.com/", wantErr: true},
		{name: "lookalike host", url: "https://youtube.com.evil.net/watch?v=abc", wantErr: true},
		{name: "embedded whitespace", url: "https://youtu.be/abc def", wantErr: true},
		{name: "too long", url: "https://youtu.be/" + strings.Repeat("a", MaxURLLength), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVideoURL(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("expected ErrInvalidURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsPlaylistURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{name: "playlist page", url: "https://www.youtube.com/playlist?list=PL123", expected: true},
		{name: "watch in playlist", url: "https://www.youtube.com/watch?v=abc&list=PL123", expected: true},
		{name: "single video", url: "https://www.youtube.com/watch?v=abc", expected: false},
		{name: "list as a suffix of another key", url: "https://www.youtube.com/watch?v=abc&blist=PL123", expected: false},
		{name: "list inside a value", url: "https://www.youtube.com/watch?v=list=PL123", expected: false},
		{name: "empty list value", url: "https://www.youtube.com/watch?v=abc&list=", expected: false},
		{name: "no scheme", url: "youtube.com/playlist?list=PL123", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPlaylistURL(tt.url); got != tt.expected {
				t.Errorf("IsPlaylistURL(%q) = %v, want %v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestExtractPlaylistID(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected string
		wantErr  bool
	}{
		{
			name:     "playlist page",
			url:      "https://www.youtube.com/playlist?list=PLrAXtmRdnEQy6nuLMHjMZOz59Oq8HmPME",
			expected: "PLrAXtmRdnEQy6nuLMHjMZOz59Oq8HmPME",
		},
		{
			name:     "watch url with extra params",
			url:      "https://www.youtube.com/watch?v=abc&list=RDabc&start_radio=1",
			expected: "RDabc",
		},
		{
			name:    "no playlist param",
			url:     "https://www.youtube.com/watch?v=abc",
			wantErr: true,
		},
		{
			name:     "list between other params",
			url:      "https://www.youtube.com/watch?v=abc&index=3&list=PL123&pp=x",
			expected: "PL123",
		},
		{
			name:    "similar key is not a playlist",
			url:     "https://www.youtube.com/watch?v=abc&blist=PL123",
			wantErr: true,
		},
		{
			name:    "empty playlist id",
			url:     "https://www.youtube.com/watch?v=abc&list=&index=2",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractPlaylistID(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got id %q", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, id)
			}
		})
	}
}
