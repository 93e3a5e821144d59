package domain

import "errors"

var (
	// ErrToolNotFound signals a missing catalog tool.
	ErrToolNotFound = errors.New("tool not found")
	// ErrToolAlreadyExists signals a duplicate catalog tool.
	ErrToolAlreadyExists = errors.New("tool already exists")
	// ErrInvalidToolData signals a malformed tool passed to the sync engine.
	ErrInvalidToolData = errors.New("invalid tool data")
	// ErrUnknownCollection signals a collection name outside the fixed set.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)
