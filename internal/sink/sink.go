// Package sink exports leads to external systems. Three adapters share one
// interface: an Airtable table, a MongoDB collection, and a relational
// database (Postgres or SQLite). Each adapter owns the translation between
// the canonical model.Lead and its own field names.
package sink

import (
	"context"
	"errors"

	"github.com/Nardjo/leadster/internal/model"
	"github.com/Nardjo/leadster/internal/resilience"
	"github.com/Nardjo/leadster/pkg/airtable"
)

// Sink is the lead export interface consumed by the pipeline.
type Sink interface {
	Name() string
	// FetchExisting returns every lead currently in the sink, for dedup.
	FetchExisting(ctx context.Context) ([]model.Lead, error)
	// Insert uploads leads and returns the number actually inserted.
	Insert(ctx context.Context, leads []model.Lead) (int, error)
}

// ErrorKind classifies sink failures for the retry decision.
type ErrorKind string

const (
	ErrAuth        ErrorKind = "auth"
	ErrNotFound    ErrorKind = "not_found"
	ErrTooLarge    ErrorKind = "payload_too_large"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrServer      ErrorKind = "server"
	ErrUnknown     ErrorKind = "unknown"
)

// Classify maps a sink error to its kind and whether a single backoff-retry
// is worth attempting. Auth and addressing errors never are; rate limits and
// server-side failures are.
func Classify(err error) (ErrorKind, bool) {
	if err == nil {
		return ErrUnknown, false
	}

	var apiErr *airtable.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return ErrAuth, false
		case apiErr.StatusCode == 404:
			return ErrNotFound, false
		case apiErr.StatusCode == 413:
			return ErrTooLarge, false
		case apiErr.StatusCode == 429:
			return ErrRateLimited, true
		case apiErr.StatusCode >= 500:
			return ErrServer, true
		default:
			return ErrUnknown, false
		}
	}

	if resilience.IsTransient(err) {
		return ErrServer, true
	}
	return ErrUnknown, false
}
