package types

import (
	"fmt"
	"time"
)

// ArtifactMetadata is the canonical metadata record of one artifact, as
// stored in its metadata file.
type ArtifactMetadata struct {
	// Identification
	ID         string `yaml:"id" json:"id"`
	ArtifactID string `yaml:"artifactId" json:"artifactId"`
	VaultID    string `yaml:"vaultId" json:"vaultId"`
	VaultName  string `yaml:"vaultName,omitempty" json:"vaultName,omitempty"`

	// Classification
	Type     string   `yaml:"type,omitempty" json:"type,omitempty"`
	Category string   `yaml:"category,omitempty" json:"category,omitempty"`
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Relationships
	Links             []string `yaml:"links,omitempty" json:"links,omitempty"`
	RelatedArtifacts  []string `yaml:"relatedArtifacts,omitempty" json:"relatedArtifacts,omitempty"`
	RelatedCodePaths  []string `yaml:"relatedCodePaths,omitempty" json:"relatedCodePaths,omitempty"`
	RelatedComponents []string `yaml:"relatedComponents,omitempty" json:"relatedComponents,omitempty"`

	// Ownership
	Author    string   `yaml:"author,omitempty" json:"author,omitempty"`
	Owner     string   `yaml:"owner,omitempty" json:"owner,omitempty"`
	Reviewers []string `yaml:"reviewers,omitempty" json:"reviewers,omitempty"`

	Properties map[string]any `yaml:"properties,omitempty" json:"properties,omitempty"`

	CreatedAt time.Time `yaml:"createdAt,omitempty" json:"createdAt,omitempty"`
	UpdatedAt time.Time `yaml:"updatedAt,omitempty" json:"updatedAt,omitempty"`
}

// Validate checks the identifiers the index is keyed on
func (m *ArtifactMetadata) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil metadata", ErrInvalidMetadata)
	}
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMetadata)
	}
	if m.ArtifactID == "" {
		return fmt.Errorf("%w: artifactId is required", ErrInvalidMetadata)
	}
	if m.VaultID == "" {
		return fmt.Errorf("%w: vaultId is required", ErrInvalidMetadata)
	}
	return nil
}
