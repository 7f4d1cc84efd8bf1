// Package grounding turns a list of web page URLs into the grounding context
// handed to the completion model.
//
// Each URL is read twice: once as raw markup fetched over plain HTTP (the
// static strategy) and once through a headless browser after the page's
// network traffic settles (the dynamic strategy). The two strategies run
// concurrently and fail independently; a failure is recorded in the
// SourceResult as placeholder text, never returned as an error, so the
// Aggregator can fan out over any number of URLs without per-URL error
// branches.
//
// Results always come back in the order the URLs were given, regardless of
// which extraction finished first.
package grounding
