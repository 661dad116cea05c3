package platform

// Package platform contains OS integration and external tooling glue: the yt-dlp
// CLI collaborator used for inspection and downloads, playlist listing via the
// ytdlp library, URL validation, and temp-directory file helpers.
