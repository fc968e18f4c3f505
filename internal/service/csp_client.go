package service

import (
	"context"
	"fmt"

	"github.com/Wei-Shaw/csp2api/internal/pkg/csp"
)

// CSPAuthClient talks to the CSP authorization endpoints. Implementations
// issue exactly one network call per invocation and never retry; backoff is
// the cache's job.
type CSPAuthClient interface {
	// FetchByAPIToken exchanges a user API token for an access token set.
	FetchByAPIToken(ctx context.Context, apiToken string) (*csp.Tokens, error)
	// FetchByClientCredentials runs the OAuth client_credentials flow for a
	// server-to-server app. orgID may be empty.
	FetchByClientCredentials(ctx context.Context, appID, appSecret, orgID string) (*csp.Tokens, error)
}

// FetchError is the single failure type crossing the fetch boundary.
// Transport faults, non-2xx statuses and undecodable bodies all collapse
// into it; the cache only cares that the fetch failed.
type FetchError struct {
	// StatusCode is the HTTP status of the response, or 0 when the request
	// never produced one (connect/timeout failure).
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("csp auth request failed with status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("csp auth request failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
