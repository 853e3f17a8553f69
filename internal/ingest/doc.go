// Package ingest admits messages pushed by a consumption session into a
// bounded in-memory store and decides how a session error is surfaced.
//
// A Router subscribes once to the event bus and hands message events to a
// Controller and error events to a Classifier. Both end the session through
// a SessionController and talk to the user through a Notifier; either may be
// unset, in which case that side effect is skipped.
package ingest
