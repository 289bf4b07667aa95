// Package sticky is the refresh scheduling and lifecycle engine for
// recurring sticky posts.
//
// It is pure orchestration over the capability interfaces in internal/kit:
// when is a post next due (refreshtime), what to do with one entry's post
// (Manager), driving all entries and the single refresh timer (Coordinator),
// validated config ingestion (Ingestor), and the comment-cap early-refresh
// path (Gate). Everything here is unit-testable with in-memory fakes.
package sticky
