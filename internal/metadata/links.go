package metadata

import (
	"strings"

	"github.com/dshills/artifact-index/pkg/types"
)

// Link types produced by DeriveLinks
const (
	LinkReferences = "references"
	LinkRelated    = "related"
	LinkImplements = "implements"
)

// DeriveLinks turns the relationship fields of a record into link rows.
// Entries of Links that look like URLs become external links, the rest
// are artifact references. Related code paths become file links.
// Duplicates and blank entries are dropped.
func DeriveLinks(md *types.ArtifactMetadata) []types.Link {
	links := make([]types.Link, 0, len(md.Links)+len(md.RelatedArtifacts)+len(md.RelatedCodePaths))
	seen := make(map[string]struct{})

	add := func(l types.Link, target string) {
		target = strings.TrimSpace(target)
		if target == "" {
			return
		}
		key := string(l.TargetType) + "|" + l.LinkType + "|" + target
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}

		switch l.TargetType {
		case types.TargetExternal:
			l.TargetURL = target
		case types.TargetFile:
			l.TargetPath = target
		default:
			l.TargetID = target
		}
		l.SourceArtifactID = md.ArtifactID
		l.VaultID = md.VaultID
		links = append(links, l)
	}

	for _, target := range md.Links {
		if isURL(target) {
			add(types.Link{TargetType: types.TargetExternal, LinkType: LinkReferences}, target)
		} else {
			add(types.Link{TargetType: types.TargetArtifact, LinkType: LinkReferences}, target)
		}
	}
	for _, target := range md.RelatedArtifacts {
		add(types.Link{TargetType: types.TargetArtifact, LinkType: LinkRelated}, target)
	}
	for _, target := range md.RelatedCodePaths {
		add(types.Link{TargetType: types.TargetFile, LinkType: LinkImplements}, target)
	}
	return links
}

func isURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
