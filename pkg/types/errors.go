package types

import "errors"

// Domain errors for type validation
var (
	ErrInvalidMetadata = errors.New("invalid artifact metadata")
	ErrInvalidLink     = errors.New("invalid link")
	ErrInvalidFilter   = errors.New("invalid filter")

	// Search result errors
	ErrInvalidArtifactID     = errors.New("artifact id is required")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
