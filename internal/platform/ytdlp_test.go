package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/ytget/yt-fetchd/internal/model"
)

const sampleDumpJSON = `{
  "id": "abc",
  "title": "Sample Video",
  "uploader": "Sample Channel",
  "duration": 213,
  "view_count": 1234567,
  "description": "About the sample",
  "thumbnail": "https://i.ytimg.com/vi/abc/hq.jpg",
  "upload_date": "20091025",
  "formats": [
    {"format_id": "140", "ext": "m4a", "resolution": "audio only", "vcodec": "none", "acodec": "mp4a.40.2", "abr": 129.5, "filesize": 3400000},
    {"format_id": "18", "ext": "mp4", "resolution": "640x360", "height": 360, "vcodec": "avc1", "acodec": "mp4a", "filesize_approx": 9000000},
    {"format_id": "137", "ext": "mp4", "resolution": "1920x1080", "height": 1080, "vcodec": "avc1", "acodec": "none", "filesize": 52428800}
  ]
}`

// scanArgs sets $cookies and $out from the yt-dlp arguments
const scanArgs = `prev=""
for a in "$@"; do
  case "$prev" in --cookies) cookies="$a" ;; esac
  case "$a" in
    --cookies=*) cookies="${a#--cookies=}" ;;
    *'%(ext)s'*) out="${a#--output=}" ;;
  esac
  prev="$a"
done
`

// writeStub creates an executable shell script standing in for yt-dlp
func writeStub(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	script := "#!/bin/sh\n" + scanArgs + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("Failed to write stub: %v", err)
	}
	return path
}

// fetchStub writes the output file with ext and prints an info line naming infoExt
func fetchStub(t *testing.T, ext, infoExt string) string {
	return writeStub(t, `f=$(printf '%s' "$out" | sed 's/%(ext)s/`+ext+`/')
i=$(printf '%s' "$out" | sed 's/%(ext)s/`+infoExt+`/')
printf data > "$f"
printf '{"id":"abc","title":"Sample Video","filename":"%s"}\n' "$i"`)
}

func compactJSON(t *testing.T, input string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(input)); err != nil {
		t.Fatalf("Failed to compact JSON: %v", err)
	}
	return buf.String()
}

func TestParseDumpJSON(t *testing.T) {
	meta, err := parseDumpJSON(sampleDumpJSON)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if meta.Title != "Sample Video" || meta.Author != "Sample Channel" {
		t.Errorf("Unexpected title/author: %q / %q", meta.Title, meta.Author)
	}
	if meta.DurationSeconds != 213 || meta.ViewCount != 1234567 {
		t.Errorf("Unexpected duration/views: %v / %d", meta.DurationSeconds, meta.ViewCount)
	}
	if meta.UploadDate != "20091025" {
		t.Errorf("Unexpected upload date: %q", meta.UploadDate)
	}
	if len(meta.Formats) != 3 {
		t.Fatalf("Expected 3 formats, got %d", len(meta.Formats))
	}

	audio := meta.Formats[0]
	if !audio.IsAudioOnly() || audio.HasVideo() {
		t.Errorf("Format 140 should be audio only: %+v", audio)
	}
	if meta.Formats[1].FilesizeBytes != 9000000 {
		t.Errorf("Expected approximate filesize fallback, got %d", meta.Formats[1].FilesizeBytes)
	}
	if !meta.Formats[2].HasVideo() || meta.Formats[2].Height != 1080 {
		t.Errorf("Format 137 should be 1080p video: %+v", meta.Formats[2])
	}
}

func TestParseDumpJSON_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not json", "{"} {
		if _, err := parseDumpJSON(input); err == nil {
			t.Errorf("Expected error for %q", input)
		}
	}
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name       string
		downloaded float64
		total      float64
		want       int
		wantOK     bool
	}{
		{name: "half", downloaded: 512, total: 1024, want: 50, wantOK: true},
		{name: "rounds down", downloaded: 999, total: 1000, want: 99, wantOK: true},
		{name: "overshoot clamped", downloaded: 2048, total: 1024, want: 100, wantOK: true},
		{name: "unknown total", downloaded: 512, total: 0, wantOK: false},
		{name: "negative", downloaded: -1, total: 10, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := progressPercent(tt.downloaded, tt.total)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestLastLines(t *testing.T) {
	got := lastLines("one\n\ntwo\n  \nthree\n", 2)
	if got != "two\nthree" {
		t.Errorf("Expected last two lines, got %q", got)
	}
}

func TestYTDLPInspect(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "dump.json")
	argsPath := filepath.Join(dir, "args.txt")
	if err := os.WriteFile(jsonPath, []byte(compactJSON(t, sampleDumpJSON)+"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	stub := writeStub(t, `printf '%s\n' "$@" > '`+argsPath+`'
cat '`+jsonPath+`'`)

	y := NewYTDLP(ClientConfig{Binary: stub}, nil)
	meta, err := y.Inspect(context.Background(), "https://youtu.be/abc")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if meta.Title != "Sample Video" || len(meta.Formats) != 3 {
		t.Errorf("Unexpected metadata %+v", meta)
	}

	data, err := os.ReadFile(argsPath)
	if err != nil {
		t.Fatalf("Failed to read args: %v", err)
	}
	args := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, want := range []string{"--dump-json", "--no-playlist", "https://youtu.be/abc"} {
		if !slices.Contains(args, want) {
			t.Errorf("Expected %q in args %v", want, args)
		}
	}
}

func TestYTDLPFetch_ReportedPath(t *testing.T) {
	dir := t.TempDir()
	y := NewYTDLP(ClientConfig{Binary: fetchStub(t, "mp4", "mp4")}, nil)

	result, err := y.Fetch(context.Background(), model.FetchSpec{
		URL:        "https://youtu.be/abc",
		Format:     "best",
		OutputDir:  dir,
		OutputStem: "video_tok",
	}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Path != filepath.Join(dir, "video_tok.mp4") {
		t.Errorf("Unexpected path %s", result.Path)
	}
	if result.Title != "Sample Video" {
		t.Errorf("Unexpected title %q", result.Title)
	}
}

func TestYTDLPFetch_FindsPostProcessedFile(t *testing.T) {
	dir := t.TempDir()
	// The info line names the downloaded webm, audio extraction left an mp3
	y := NewYTDLP(ClientConfig{Binary: fetchStub(t, "mp3", "webm")}, nil)

	result, err := y.Fetch(context.Background(), model.FetchSpec{
		URL:         "https://youtu.be/abc",
		Type:        model.MediaTypeAudio,
		Format:      "bestaudio/best",
		AudioFormat: "mp3",
		OutputDir:   dir,
		OutputStem:  "video_tok",
	}, func(int) {})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Path != filepath.Join(dir, "video_tok.mp3") {
		t.Errorf("Unexpected path %s", result.Path)
	}
}

func TestYTDLPFetch_ToolError(t *testing.T) {
	stub := writeStub(t, `echo "WARNING: slow network" >&2
echo "ERROR: [youtube] abc: Video unavailable" >&2
exit 1`)
	y := NewYTDLP(ClientConfig{Binary: stub}, nil)

	_, err := y.Fetch(context.Background(), model.FetchSpec{
		URL:        "https://youtu.be/abc",
		Format:     "best",
		OutputDir:  t.TempDir(),
		OutputStem: "video_tok",
	}, nil)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("Expected ToolError, got %v", err)
	}
	if !strings.Contains(toolErr.Diagnostic(), "Video unavailable") {
		t.Errorf("Diagnostic should carry stderr, got %q", toolErr.Diagnostic())
	}
}

func TestYTDLPFetch_NoOutput(t *testing.T) {
	y := NewYTDLP(ClientConfig{Binary: writeStub(t, `exit 0`)}, nil)

	_, err := y.Fetch(context.Background(), model.FetchSpec{
		URL:        "https://youtu.be/abc",
		Format:     "best",
		OutputDir:  t.TempDir(),
		OutputStem: "video_tok",
	}, nil)
	if err == nil {
		t.Fatal("Expected error when nothing was produced")
	}
}

func TestYTDLPFetch_Cancelled(t *testing.T) {
	y := NewYTDLP(ClientConfig{Binary: writeStub(t, `exec sleep 10`)}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := y.Fetch(ctx, model.FetchSpec{
		URL:        "https://youtu.be/abc",
		Format:     "best",
		OutputDir:  t.TempDir(),
		OutputStem: "video_tok",
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline error, got %v", err)
	}
}

func TestYTDLPInspect_CookiesArePrivateAndRemoved(t *testing.T) {
	dir := t.TempDir()
	cookieDir := t.TempDir()
	capture := filepath.Join(dir, "cookies.txt")
	jsonPath := filepath.Join(dir, "dump.json")
	if err := os.WriteFile(jsonPath, []byte(compactJSON(t, sampleDumpJSON)+"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write dump: %v", err)
	}
	// The stub records the cookie path, its mode and its content.
	stub := writeStub(t, `[ -n "$cookies" ] || exit 9
{ echo "$cookies"; ls -l "$cookies" | cut -c1-10; cat "$cookies"; } > '`+capture+`'
cat '`+jsonPath+`'`)

	y := NewYTDLP(ClientConfig{
		Binary:    stub,
		Cookies:   "# Netscape HTTP Cookie File",
		CookieDir: cookieDir,
	}, nil)
	if _, err := y.Inspect(context.Background(), "https://youtu.be/abc"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, err := os.ReadFile(capture)
	if err != nil {
		t.Fatalf("Failed to read capture: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 3 {
		t.Fatalf("Unexpected capture %q", data)
	}
	if filepath.Dir(lines[0]) != cookieDir {
		t.Errorf("Cookie file written outside %s: %s", cookieDir, lines[0])
	}
	if lines[1] != "-rw-------" {
		t.Errorf("Cookie file mode should be 0600, got %s", lines[1])
	}
	if lines[2] != "# Netscape HTTP Cookie File" {
		t.Errorf("Unexpected cookie content %q", lines[2])
	}
	if _, err := os.Stat(lines[0]); !os.IsNotExist(err) {
		t.Errorf("Cookie file should be removed after the run, stat err: %v", err)
	}
}

func TestYTDLPFetch_CookiesRemovedOnFailure(t *testing.T) {
	cookieDir := t.TempDir()
	y := NewYTDLP(ClientConfig{Binary: writeStub(t, `exit 1`), Cookies: "jar", CookieDir: cookieDir}, nil)

	_, err := y.Fetch(context.Background(), model.FetchSpec{
		URL:        "https://youtu.be/abc",
		Format:     "best",
		OutputDir:  t.TempDir(),
		OutputStem: "video_tok",
	}, nil)
	if err == nil {
		t.Fatal("Expected error")
	}

	entries, err := os.ReadDir(cookieDir)
	if err != nil {
		t.Fatalf("Failed to read cookie dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Cookie directory should be empty, found %d entries", len(entries))
	}
}
