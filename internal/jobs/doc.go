// Package jobs holds the in-memory registry of fetch jobs. It is the single
// source of truth for job status and progress and enforces the process-wide
// ceiling on concurrently active jobs.
package jobs
