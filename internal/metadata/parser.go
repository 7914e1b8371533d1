package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/artifact-index/pkg/types"
)

// MaxFileSize caps how much of a metadata file is read
const MaxFileSize = 1 << 20

// ErrInvalidDocument is returned for files that are not metadata documents
var ErrInvalidDocument = errors.New("invalid metadata document")

// Document is one parsed metadata file
type Document struct {
	Path        string
	Metadata    types.ArtifactMetadata
	Title       *string
	Description *string
}

// wire is the on-disk shape: metadata fields inline with title and
// description
type wire struct {
	types.ArtifactMetadata `yaml:",inline"`
	Title                  *string `yaml:"title"`
	Description            *string `yaml:"description"`
}

// IsMetadataFile reports whether a file name looks like a metadata file
func IsMetadataFile(name string) bool {
	if strings.HasPrefix(filepath.Base(name), ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// ParseFile reads and parses the metadata file at path
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer func() { _ = f.Close() }()

	content, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if len(content) > MaxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidDocument, path, MaxFileSize)
	}
	return Parse(content, path)
}

// Parse decodes a metadata document. path is recorded on the result and
// used in errors.
func Parse(content []byte, path string) (*Document, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidDocument, path)
	}

	var w wire
	if err := yaml.Unmarshal(content, &w); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidDocument, path, err)
	}
	if err := w.ArtifactMetadata.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return &Document{
		Path:        path,
		Metadata:    w.ArtifactMetadata,
		Title:       w.Title,
		Description: w.Description,
	}, nil
}
