package interfaces

import (
	"context"
	"encoding/json"
)

// ResourceFetcher performs the upstream call for a named resource.
// The payload shape is opaque to callers that only cache it.
type ResourceFetcher interface {
	Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error)
}

// FetcherFunc adapts a function to ResourceFetcher.
type FetcherFunc func(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error)

func (f FetcherFunc) Fetch(ctx context.Context, resource, symbol string, params map[string]string) (json.RawMessage, error) {
	return f(ctx, resource, symbol, params)
}

// BatchFetcher fetches a multi-symbol resource in one call. The result is
// keyed by the requested keys; keys the upstream does not know are omitted.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, resource string, keys []string) (map[string]json.RawMessage, error)
}

// GeminiClient generates free-text commentary
type GeminiClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
