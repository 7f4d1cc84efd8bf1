// Package chat answers a question grounded in the content of caller-supplied
// web pages.
//
// A request moves through Validating, Aggregating, Completing and Responding.
// Any stage may end in Failed. Validation failures happen before any network
// call. Extraction failures are carried as data in the citations and never
// fail the request. Completion failures always do.
package chat
