package model

// Package model defines domain data structures shared across the service: fetch
// jobs and their status transitions, cached artifacts, media metadata returned by
// inspection, and playlist entries. Snapshots are plain values so they can be
// handed to HTTP handlers without exposing registry internals.
