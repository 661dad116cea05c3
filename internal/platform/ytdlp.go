package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/ytget/yt-fetchd/internal/model"
)

// Collaborator defaults
const (
	YTDLPCommand            = "yt-dlp"
	OutputExtTemplate       = ".%(ext)s"
	StderrTailLines         = 20
	DefaultProgressInterval = 500 * time.Millisecond
)

// ToolError is returned when yt-dlp exits unsuccessfully
type ToolError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("yt-dlp exited with status %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("yt-dlp failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Diagnostic returns the tail of yt-dlp's own error output
func (e *ToolError) Diagnostic() string {
	return e.Stderr
}

// ClientConfig configures the yt-dlp collaborator
type ClientConfig struct {
	Binary string
	// Cookies is the cookie jar content in Netscape format. It is written to a
	// private temp file for each invocation and removed afterwards.
	Cookies          string
	CookieDir        string
	ProgressInterval time.Duration
}

// YTDLP inspects and downloads media through go-ytdlp
type YTDLP struct {
	binary           string
	cookies          string
	cookieDir        string
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewYTDLP creates the collaborator
func NewYTDLP(cfg ClientConfig, logger *slog.Logger) *YTDLP {
	if cfg.Binary == "" {
		cfg.Binary = YTDLPCommand
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = DefaultProgressInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YTDLP{
		binary:           cfg.Binary,
		cookies:          cfg.Cookies,
		cookieDir:        cfg.CookieDir,
		progressInterval: cfg.ProgressInterval,
		logger:           logger.With("component", "ytdlp"),
	}
}

// ProgressCapability reports that yt-dlp emits byte counts while downloading
func (y *YTDLP) ProgressCapability() model.ProgressCapability {
	return model.ProgressFine
}

func (y *YTDLP) command(cookiePath string) *goytdlp.Command {
	dl := goytdlp.New().
		SetExecutable(y.binary).
		NoPlaylist().
		RestrictFilenames()
	if cookiePath != "" {
		dl.Cookies(cookiePath)
	}
	return dl
}

// Inspect resolves metadata and available formats without downloading
func (y *YTDLP) Inspect(ctx context.Context, url string) (*model.MediaMetadata, error) {
	cookiePath, cleanup, err := writeCookieJar(y.cookieDir, y.cookies, y.logger)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	res, err := y.command(cookiePath).DumpJSON().Run(ctx, url)
	if err != nil {
		return nil, toolFailure(ctx, res, err)
	}
	return parseDumpJSON(res.Stdout)
}

// Fetch downloads the media described by the fetch parameters and returns the produced file
func (y *YTDLP) Fetch(ctx context.Context, spec model.FetchSpec, progress func(percent int)) (model.FetchResult, error) {
	cookiePath, cleanup, err := writeCookieJar(y.cookieDir, y.cookies, y.logger)
	if err != nil {
		return model.FetchResult{}, err
	}
	defer cleanup()

	dl := y.command(cookiePath).
		ForceOverwrites().
		PrintJSON().
		Format(spec.Format).
		Output(outputTemplate(spec))
	if spec.AudioFormat != "" {
		dl.ExtractAudio().AudioFormat(spec.AudioFormat)
	}
	if spec.MergeFormat != "" {
		dl.MergeOutputFormat(spec.MergeFormat)
	}
	if progress != nil {
		dl.ProgressFunc(y.progressInterval, func(update goytdlp.ProgressUpdate) {
			if percent, ok := progressPercent(float64(update.DownloadedBytes), float64(update.TotalBytes)); ok {
				progress(percent)
			}
		})
	}

	res, err := dl.Run(ctx, spec.URL)
	if err != nil {
		return model.FetchResult{}, toolFailure(ctx, res, err)
	}

	var result model.FetchResult
	if info, err := res.GetExtractedInfo(); err == nil && len(info) > 0 {
		if info[0].Filename != nil {
			result.Path = *info[0].Filename
		}
		if info[0].Title != nil {
			result.Title = *info[0].Title
		}
	}

	// Post-processing (merge, audio extraction) can change the extension
	// after the info line was printed.
	if !ownsOutput(spec, result.Path) {
		path, err := FindOutputFile(spec.OutputDir, spec.OutputStem)
		if err != nil {
			return model.FetchResult{}, err
		}
		result.Path = path
	}
	return result, nil
}

func outputTemplate(spec model.FetchSpec) string {
	output := spec.OutputStem + OutputExtTemplate
	if spec.OutputDir != "" {
		output = filepath.Join(spec.OutputDir, output)
	}
	return output
}

// toolFailure converts a failed run into an interruption or a ToolError
func toolFailure(ctx context.Context, res *goytdlp.Result, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("yt-dlp interrupted: %w", ctxErr)
	}
	toolErr := &ToolError{Err: err}
	if res != nil {
		toolErr.ExitCode = res.ExitCode
		toolErr.Stderr = lastLines(res.Stderr, StderrTailLines)
	}
	return toolErr
}

// ownsOutput reports whether path is an existing file this job's fetch produced
func ownsOutput(spec model.FetchSpec, path string) bool {
	if path == "" || !fileExists(path) {
		return false
	}
	if !strings.HasPrefix(filepath.Base(path), spec.OutputStem+".") {
		return false
	}
	if spec.OutputDir == "" {
		return true
	}
	dir, err := filepath.Abs(spec.OutputDir)
	if err != nil {
		return false
	}
	fileDir, err := filepath.Abs(filepath.Dir(path))
	return err == nil && fileDir == dir
}

// progressPercent converts byte counts into a 0..100 percentage
func progressPercent(downloaded, total float64) (int, bool) {
	if total <= 0 || downloaded < 0 {
		return 0, false
	}
	percent := int(downloaded / total * 100)
	return min(max(percent, 0), 100), true
}

// lastLines keeps the last n non-empty lines of output
func lastLines(output string, n int) string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

type dumpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Resolution     string  `json:"resolution"`
	Height         int     `json:"height"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	ABR            float64 `json:"abr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

type dumpInfo struct {
	Title       string       `json:"title"`
	Uploader    string       `json:"uploader"`
	Duration    float64      `json:"duration"`
	ViewCount   int64        `json:"view_count"`
	Description string       `json:"description"`
	Thumbnail   string       `json:"thumbnail"`
	UploadDate  string       `json:"upload_date"`
	Formats     []dumpFormat `json:"formats"`
}

// parseDumpJSON parses yt-dlp --dump-json output
func parseDumpJSON(output string) (*model.MediaMetadata, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, fmt.Errorf("empty inspection output")
	}

	var info dumpInfo
	if err := json.Unmarshal([]byte(output), &info); err != nil {
		return nil, fmt.Errorf("failed to parse inspection output: %w", err)
	}

	meta := &model.MediaMetadata{
		Title:           info.Title,
		Author:          info.Uploader,
		DurationSeconds: info.Duration,
		ViewCount:       info.ViewCount,
		Description:     info.Description,
		ThumbnailURL:    info.Thumbnail,
		UploadDate:      info.UploadDate,
		Formats:         make([]model.MediaFormat, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		meta.Formats = append(meta.Formats, model.MediaFormat{
			ID:            f.FormatID,
			Ext:           f.Ext,
			Resolution:    f.Resolution,
			Height:        f.Height,
			VCodec:        f.VCodec,
			ACodec:        f.ACodec,
			ABR:           f.ABR,
			FilesizeBytes: size,
		})
	}
	return meta, nil
}
