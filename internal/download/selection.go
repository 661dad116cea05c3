package download

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ytget/yt-fetchd/internal/model"
)

// Quality presets
const (
	QualityBest        = "best"
	QualityBestLabel   = "best_quality"
	QualityAudioFormat = "mp3"
	VideoMergeFormat   = "mp4"
	AdaptiveMerge      = "mkv"
)

// Info formatting limits
const (
	MaxDescriptionRunes = 500
	UnknownPublishDate  = "Unknown"
	uploadDateLayout    = "20060102"
	publishDateLayout   = "2006-01-02"
	bytesPerMB          = 1024 * 1024
)

// BuildFetchSpec derives the collaborator's format selectors from the requested type
// and quality. Quality is either a preset (best, best_quality, empty) or a height
// cap such as "720p". Audio downloads ignore quality.
func BuildFetchSpec(url string, mediaType model.MediaType, quality string) (model.FetchSpec, error) {
	var height int
	if mediaType != model.MediaTypeAudio {
		h, err := parseQualityHeight(quality)
		if err != nil {
			return model.FetchSpec{}, err
		}
		height = h
	}

	spec := model.FetchSpec{URL: url, Type: mediaType}
	switch mediaType {
	case model.MediaTypeAudio:
		spec.Format = "bestaudio/best"
		spec.AudioFormat = QualityAudioFormat
	case model.MediaTypeAdaptive:
		spec.Format = "bestvideo+bestaudio/best"
		if height > 0 {
			limit := heightFilter(height)
			spec.Format = fmt.Sprintf("bestvideo%s+bestaudio/best%s/best", limit, limit)
		}
		spec.MergeFormat = AdaptiveMerge
	default:
		spec.Type = model.MediaTypeVideo
		spec.Format = "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best[ext=mp4]/best"
		if height > 0 {
			limit := heightFilter(height)
			spec.Format = fmt.Sprintf("bestvideo[ext=mp4]%s+bestaudio[ext=m4a]/best[ext=mp4]%s/best%s/best", limit, limit, limit)
		}
		spec.MergeFormat = VideoMergeFormat
	}
	return spec, nil
}

// parseQualityHeight returns the height cap for a quality value, 0 meaning no cap
func parseQualityHeight(quality string) (int, error) {
	q := strings.ToLower(strings.TrimSpace(quality))
	switch q {
	case "", QualityBest, QualityBestLabel:
		return 0, nil
	}

	h, err := strconv.Atoi(strings.TrimSuffix(q, "p"))
	if err != nil || h <= 0 {
		return 0, invalid("quality", fmt.Sprintf("unsupported quality: %q", quality))
	}
	return h, nil
}

func heightFilter(height int) string {
	return fmt.Sprintf("[height<=%d]", height)
}

// BuildVideoInfo applies the info-path selection policy to raw inspection metadata.
// Video variants are deduplicated by resolution with the first-seen entry kept and
// sorted by height descending; audio-only variants are sorted by bitrate descending.
func BuildVideoInfo(meta *model.MediaMetadata) model.VideoInfo {
	info := model.VideoInfo{
		Title:        meta.Title,
		Author:       meta.Author,
		Length:       formatLength(meta.DurationSeconds),
		Views:        formatViews(meta.ViewCount),
		Description:  truncateRunes(meta.Description, MaxDescriptionRunes),
		ThumbnailURL: meta.ThumbnailURL,
		PublishDate:  formatPublishDate(meta.UploadDate),
		VideoStreams: make([]model.VideoStream, 0),
		AudioStreams: make([]model.AudioStream, 0),
	}

	seen := make(map[string]bool)
	for _, f := range meta.Formats {
		size := filesizeMB(f.FilesizeBytes)
		if f.HasVideo() && f.Height > 0 {
			resolution := f.Resolution
			if resolution == "" {
				resolution = fmt.Sprintf("%dp", f.Height)
			}
			if !seen[resolution] {
				seen[resolution] = true
				info.VideoStreams = append(info.VideoStreams, model.VideoStream{
					Resolution:   resolution,
					Height:       f.Height,
					FilesizeMB:   size,
					QualityLabel: fmt.Sprintf("%dp", f.Height),
				})
			}
		}
		if f.IsAudioOnly() {
			info.AudioStreams = append(info.AudioStreams, model.AudioStream{
				ABR:        f.ABR,
				FilesizeMB: size,
			})
		}
	}

	sort.SliceStable(info.VideoStreams, func(i, j int) bool {
		return info.VideoStreams[i].Height > info.VideoStreams[j].Height
	})
	sort.SliceStable(info.AudioStreams, func(i, j int) bool {
		return info.AudioStreams[i].ABR > info.AudioStreams[j].ABR
	})
	return info
}

func filesizeMB(bytes int64) float64 {
	if bytes <= 0 {
		return 0
	}
	return math.Round(float64(bytes)/bytesPerMB*100) / 100
}

// formatLength renders seconds as m:ss
func formatLength(seconds float64) string {
	total := int(math.Max(seconds, 0))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// formatViews renders a count with comma thousands separators
func formatViews(views int64) string {
	if views < 0 {
		views = 0
	}
	digits := strconv.FormatInt(views, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

func formatPublishDate(uploadDate string) string {
	t, err := time.Parse(uploadDateLayout, uploadDate)
	if err != nil {
		return UnknownPublishDate
	}
	return t.Format(publishDateLayout)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
