// Package domain holds errors shared across the application layers.
package domain

import "errors"

// Sentinel errors for the failure kinds the application distinguishes.
// Callers wrap them with fmt.Errorf("...: %w", ...) and match with errors.Is.
var (
	// ErrDocumentRead indicates the source PDF is missing, unreadable or
	// not a valid PDF.
	ErrDocumentRead = errors.New("document read failed")

	// ErrEmbedding indicates the embedding service could not produce a
	// vector, including the empty-input case.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexNotFound indicates no persisted vector index exists at the
	// configured location. Run the ingest command first.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrGeneration indicates the language model call failed or returned
	// an empty response.
	ErrGeneration = errors.New("answer generation failed")

	// ErrMissingCredentials indicates required watsonx credentials are
	// absent from the environment.
	ErrMissingCredentials = errors.New("missing watsonx credentials")
)
