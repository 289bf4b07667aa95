// Package scheduler runs the daemon's jobs: the single named refresh job
// (scheduled as one-shot instances the coordinator reconciles) and fixed
// recurring polls (wiki config, comment caps).
//
// One-shot instances are intentionally NOT deduplicated by name — the
// refresh coordinator lists and cancels instances itself, and that sweep
// only means something if duplicates are representable.
package scheduler
