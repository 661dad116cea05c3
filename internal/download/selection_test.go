package download

import (
	"errors"
	"strings"
	"testing"

	"github.com/ytget/yt-fetchd/internal/model"
)

func TestBuildFetchSpec(t *testing.T) {
	tests := []struct {
		name        string
		mediaType   model.MediaType
		quality     string
		format      string
		merge       string
		audioFormat string
	}{
		{
			name:      "video best",
			mediaType: model.MediaTypeVideo,
			quality:   "best_quality",
			format:    "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best",
			merge:     "mp4",
		},
		{
			name:      "video capped",
			mediaType: model.MediaTypeVideo,
			quality:   "720p",
			format:    "bestvideo[ext=mp4][height<=720]+bestaudio[ext=m4a]/best[ext=mp4][height<=720]/best[height<=720]/best",
			merge:     "mp4",
		},
		{
			name:        "audio ignores height",
			mediaType:   model.MediaTypeAudio,
			quality:     "1080",
			format:      "bestaudio/best",
			audioFormat: "mp3",
		},
		{
			name:      "adaptive",
			mediaType: model.MediaTypeAdaptive,
			quality:   "",
			format:    "bestvideo+bestaudio/best",
			merge:     "mkv",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := BuildFetchSpec("https://youtu.be/abc", tt.mediaType, tt.quality)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if spec.Format != tt.format {
				t.Errorf("Expected format %q, got %q", tt.format, spec.Format)
			}
			if spec.MergeFormat != tt.merge {
				t.Errorf("Expected merge format %q, got %q", tt.merge, spec.MergeFormat)
			}
			if spec.AudioFormat != tt.audioFormat {
				t.Errorf("Expected audio format %q, got %q", tt.audioFormat, spec.AudioFormat)
			}
		})
	}
}

func TestBuildFetchSpec_InvalidQuality(t *testing.T) {
	for _, quality := range []string{"ultra", "-1p", "0"} {
		_, err := BuildFetchSpec("https://youtu.be/abc", model.MediaTypeVideo, quality)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("Expected validation error for %q, got %v", quality, err)
		}
	}
}

func TestBuildVideoInfo(t *testing.T) {
	meta := &model.MediaMetadata{
		Title:           "Sample",
		Author:          "Channel",
		DurationSeconds: 213.7,
		ViewCount:       1234567,
		Description:     strings.Repeat("d", 600),
		UploadDate:      "20091025",
		Formats: []model.MediaFormat{
			{ID: "139", ACodec: "mp4a", VCodec: "none", ABR: 48, FilesizeBytes: 1024 * 1024},
			{ID: "140", ACodec: "mp4a", VCodec: "none", ABR: 129.5, FilesizeBytes: 3 * 1024 * 1024},
			{ID: "18", Resolution: "640x360", Height: 360, VCodec: "avc1", ACodec: "mp4a", FilesizeBytes: 5 * 1024 * 1024},
			{ID: "137", Resolution: "1920x1080", Height: 1080, VCodec: "avc1", ACodec: "none", FilesizeBytes: 52428800},
			{ID: "248", Resolution: "1920x1080", Height: 1080, VCodec: "vp9", ACodec: "none", FilesizeBytes: 1},
			{ID: "sb0", Resolution: "storyboard", VCodec: "none", ACodec: "none"},
			{ID: "22", Resolution: "1280x720", Height: 720, VCodec: "avc1", ACodec: "mp4a", FilesizeBytes: 1536000},
		},
	}

	info := BuildVideoInfo(meta)

	if info.Length != "3:33" {
		t.Errorf("Expected length 3:33, got %q", info.Length)
	}
	if info.Views != "1,234,567" {
		t.Errorf("Expected views 1,234,567, got %q", info.Views)
	}
	if n := len([]rune(info.Description)); n != MaxDescriptionRunes {
		t.Errorf("Expected description of %d runes, got %d", MaxDescriptionRunes, n)
	}
	if info.PublishDate != "2009-10-25" {
		t.Errorf("Expected publish date 2009-10-25, got %q", info.PublishDate)
	}

	wantHeights := []int{1080, 720, 360}
	if len(info.VideoStreams) != len(wantHeights) {
		t.Fatalf("Expected %d video streams, got %+v", len(wantHeights), info.VideoStreams)
	}
	for i, h := range wantHeights {
		if info.VideoStreams[i].Height != h {
			t.Errorf("Stream %d: expected height %d, got %d", i, h, info.VideoStreams[i].Height)
		}
	}
	// First-seen entry wins for a duplicated resolution
	if info.VideoStreams[0].FilesizeMB != 50 {
		t.Errorf("Expected first-seen 1080p entry (50 MB), got %v", info.VideoStreams[0].FilesizeMB)
	}
	if info.VideoStreams[0].QualityLabel != "1080p" {
		t.Errorf("Unexpected quality label %q", info.VideoStreams[0].QualityLabel)
	}
	if info.VideoStreams[1].FilesizeMB != 1.46 {
		t.Errorf("Expected size rounded to 1.46 MB, got %v", info.VideoStreams[1].FilesizeMB)
	}

	if len(info.AudioStreams) != 2 || info.AudioStreams[0].ABR != 129.5 || info.AudioStreams[1].ABR != 48 {
		t.Errorf("Audio streams should be sorted by bitrate: %+v", info.AudioStreams)
	}
}

func TestBuildVideoInfo_UnknownDate(t *testing.T) {
	for _, date := range []string{"", "2009", "not-a-date"} {
		info := BuildVideoInfo(&model.MediaMetadata{UploadDate: date})
		if info.PublishDate != UnknownPublishDate {
			t.Errorf("Expected %q for %q, got %q", UnknownPublishDate, date, info.PublishDate)
		}
		if info.VideoStreams == nil || info.AudioStreams == nil {
			t.Error("Stream lists should be empty, not nil")
		}
	}
}

func TestFormatViews(t *testing.T) {
	tests := map[int64]string{
		0:          "0",
		999:        "999",
		1000:       "1,000",
		123456:     "123,456",
		1000000000: "1,000,000,000",
		-5:         "0",
	}
	for in, want := range tests {
		if got := formatViews(in); got != want {
			t.Errorf("formatViews(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatLength(t *testing.T) {
	tests := map[float64]string{
		0:    "0:00",
		59:   "0:59",
		61:   "1:01",
		3600: "60:00",
		-3:   "0:00",
	}
	for in, want := range tests {
		if got := formatLength(in); got != want {
			t.Errorf("formatLength(%v) = %q, want %q", in, got, want)
		}
	}
}
