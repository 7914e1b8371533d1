// Package types provides shared type definitions for the artifact index.
//
// # Core Types
//
// ArtifactMetadata is the canonical record of one artifact. The index is
// keyed on its ID; ArtifactID and VaultID locate the artifact in the
// canonical store:
//
//	md := &types.ArtifactMetadata{
//	    ID:         "meta-42",
//	    ArtifactID: "adr-0007",
//	    VaultID:    "architecture",
//	    Type:       "adr",
//	    Tags:       []string{"kafka", "ingestion"},
//	}
//
// Link is a relationship from an artifact to another artifact, a file or an
// external URL. The target field must agree with TargetType:
//
//	link := &types.Link{
//	    SourceArtifactID: "adr-0007",
//	    TargetType:       types.TargetFile,
//	    TargetPath:       "internal/ingest/consumer.go",
//	    LinkType:         "implements",
//	    Location:         &types.CodeLocation{LineStart: 10, LineEnd: 42},
//	}
//
// Filter narrows structured queries; every set field must match and Tags
// uses containment (the row carries all listed tags).
//
// # Validation
//
// Domain types implement Validate and return errors wrapping the sentinel
// errors of this package, so callers can test them with errors.Is:
//
//	if err := link.Validate(); errors.Is(err, types.ErrInvalidLink) {
//	    ...
//	}
//
// # Search Results
//
// SearchResult is one artifact of a fused hybrid search, with the ranks it
// had in the keyword and semantic lists. Relevance scores are normalized to
// the [0, 1] range, higher is better.
package types
