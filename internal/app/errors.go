package app

import "errors"

var (
	// ErrNotFound indicates the referenced document, pair group, or mistake
	// does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPageCountMismatch indicates a clean upload whose page count
	// disagrees with its annotated counterpart. Nothing is mutated.
	ErrPageCountMismatch = errors.New("page count mismatch")
	// ErrInvalidRegion indicates a bounding box below minimum size, out of
	// normalized bounds, or on a page the documents do not have.
	ErrInvalidRegion = errors.New("invalid region")
	// ErrNoSession indicates a review action without a started session.
	ErrNoSession = errors.New("no active review session")
)
