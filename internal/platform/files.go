package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Display name limits
const (
	MaxDisplayNameRunes = 150
	FallbackNamePrefix  = "video_"
)

// File extensions left behind by interrupted downloads
var (
	SkippedExtensions = []string{".part", ".ytdl", ".temp"}
)

// intermediateFormatFile matches per-stream files written before a merge, e.g. <stem>.f137.mp4
var intermediateFormatFile = regexp.MustCompile(`\.f\d+(-\d+)?\.[A-Za-z0-9]+$`)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// FindOutputFile returns the finished output file for stem inside dir.
// Partial and intermediate per-stream files are ignored; if several candidates
// remain the most recently modified wins.
func FindOutputFile(dir, stem string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(stem)+".*"))
	if err != nil {
		return "", fmt.Errorf("glob output files: %w", err)
	}

	var candidates []string
	for _, match := range matches {
		if isPartialFile(match) {
			continue
		}
		info, err := os.Stat(match)
		if err != nil || info.IsDir() {
			continue
		}
		candidates = append(candidates, match)
	}

	if len(candidates) == 0 {
		return "", fmt.Errorf("downloaded file not found for %s", stem)
	}

	sort.Slice(candidates, func(i, j int) bool {
		infoI, errI := os.Stat(candidates[i])
		infoJ, errJ := os.Stat(candidates[j])
		if errI != nil || errJ != nil {
			return candidates[i] < candidates[j]
		}
		return infoI.ModTime().After(infoJ.ModTime())
	})
	return candidates[0], nil
}

// RemoveOutputFiles removes every file in dir whose name starts with stem.
// It returns how many files were removed.
func RemoveOutputFiles(dir, stem string) int {
	matches, err := filepath.Glob(filepath.Join(dir, globEscape(stem)+".*"))
	if err != nil {
		return 0
	}
	removed := 0
	for _, match := range matches {
		if err := os.Remove(match); err == nil {
			removed++
		}
	}
	return removed
}

// PurgeDirectory removes the regular files directly inside dir.
// Subdirectories are left alone.
func PurgeDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("read directory %s: %w", dir, err)
	}

	removed := 0
	var errs []error
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// DisplayFilename builds a client-facing file name from a media title and the
// extension of the produced file. Falls back to video_<token> like the on-disk name.
func DisplayFilename(title, path, token string) string {
	ext := filepath.Ext(path)
	name := sanitizeName(title)
	if name == "" {
		name = FallbackNamePrefix + token
	}
	return name + ext
}

// sanitizeName strips path separators and control characters and truncates
func sanitizeName(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '"' || r == '*' || r == '?' || r == '<' || r == '>' || r == '|':
			return '_'
		case unicode.IsControl(r):
			return -1
		default:
			return r
		}
	}, title)
	cleaned = strings.Trim(strings.TrimSpace(cleaned), ".")

	runes := []rune(cleaned)
	if len(runes) > MaxDisplayNameRunes {
		cleaned = strings.TrimSpace(string(runes[:MaxDisplayNameRunes]))
	}
	return cleaned
}

func isPartialFile(path string) bool {
	name := filepath.Base(path)
	for _, ext := range SkippedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return intermediateFormatFile.MatchString(name)
}

// globEscape escapes glob metacharacters in a literal name
func globEscape(s string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`)
	return replacer.Replace(s)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
