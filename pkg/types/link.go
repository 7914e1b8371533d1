package types

import (
	"fmt"
	"time"
)

// TargetType is the kind of thing a link points at
type TargetType string

const (
	TargetArtifact TargetType = "artifact"
	TargetFile     TargetType = "file"
	TargetExternal TargetType = "external"
)

// CodeLocation is a line range inside a file target
type CodeLocation struct {
	LineStart int `json:"lineStart"`
	LineEnd   int `json:"lineEnd"`
}

// Link is one relationship from an artifact to another artifact, a file
// or an external URL. Exactly the target field matching TargetType is set.
type Link struct {
	ID               string        `json:"id"`
	SourceArtifactID string        `json:"sourceArtifactId"`
	TargetType       TargetType    `json:"targetType"`
	TargetID         string        `json:"targetId,omitempty"`
	TargetPath       string        `json:"targetPath,omitempty"`
	TargetURL        string        `json:"targetUrl,omitempty"`
	LinkType         string        `json:"linkType"`
	Strength         *float64      `json:"strength,omitempty"`
	Location         *CodeLocation `json:"location,omitempty"`
	VaultID          string        `json:"vaultId"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// Validate checks that the link is internally consistent
func (l *Link) Validate() error {
	if l.SourceArtifactID == "" {
		return fmt.Errorf("%w: source artifact id is required", ErrInvalidLink)
	}
	if l.LinkType == "" {
		return fmt.Errorf("%w: link type is required", ErrInvalidLink)
	}
	if l.VaultID == "" {
		return fmt.Errorf("%w: vault id is required", ErrInvalidLink)
	}

	set := 0
	for _, v := range []string{l.TargetID, l.TargetPath, l.TargetURL} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("%w: exactly one target must be set, got %d", ErrInvalidLink, set)
	}

	switch l.TargetType {
	case TargetArtifact:
		if l.TargetID == "" {
			return fmt.Errorf("%w: artifact link needs a target id", ErrInvalidLink)
		}
	case TargetFile:
		if l.TargetPath == "" {
			return fmt.Errorf("%w: file link needs a target path", ErrInvalidLink)
		}
	case TargetExternal:
		if l.TargetURL == "" {
			return fmt.Errorf("%w: external link needs a target url", ErrInvalidLink)
		}
	default:
		return fmt.Errorf("%w: unknown target type %q", ErrInvalidLink, l.TargetType)
	}

	if l.Strength != nil && (*l.Strength < 0 || *l.Strength > 1) {
		return fmt.Errorf("%w: strength must be between 0 and 1", ErrInvalidLink)
	}

	if l.Location != nil {
		if l.TargetType != TargetFile {
			return fmt.Errorf("%w: code location only applies to file links", ErrInvalidLink)
		}
		if l.Location.LineStart < 1 || l.Location.LineEnd < l.Location.LineStart {
			return fmt.Errorf("%w: invalid line range %d-%d", ErrInvalidLink, l.Location.LineStart, l.Location.LineEnd)
		}
	}

	return nil
}
