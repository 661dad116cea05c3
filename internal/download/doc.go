package download

// Package download implements the fetch pipeline on top of the yt-dlp
// collaborator. It validates requests, admits jobs against the registry's
// concurrency ceiling, runs each job on its own goroutine with a timeout and one
// retry, and hands finished files to the artifact store. It also serves the
// read-only info and playlist paths.
