package types

// SearchResult is one artifact in a fused search response
type SearchResult struct {
	ArtifactID string `json:"artifactId"`
	Rank       int    `json:"rank"` // Position in result set (1-based)

	// Scoring
	RelevanceScore float64 `json:"relevanceScore"` // Reciprocal Rank Fusion score
	TextRank       int     `json:"textRank,omitempty"`
	VectorRank     int     `json:"vectorRank,omitempty"`

	// Metadata, filled when the artifact is still indexed
	MetadataFilePath string `json:"metadataFilePath,omitempty"`
	Title            string `json:"title,omitempty"`
}

// Validate checks if the search result is valid
func (sr *SearchResult) Validate() error {
	if sr.ArtifactID == "" {
		return ErrInvalidArtifactID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.RelevanceScore < 0 || sr.RelevanceScore > 1 {
		return ErrInvalidRelevanceScore
	}

	return nil
}
