package curation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"sigs.k8s.io/yaml"

	"github.com/potooio/curator/internal/types"
)

// ErrUnsupportedFormat is returned by Parse for a format it does not know.
var ErrUnsupportedFormat = errors.New("unsupported curation format")

// Format identifies the encoding of a curation document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFromPath picks a Format from the file extension. Unknown extensions are JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	default:
		return FormatJSON
	}
}

// Source supplies curation documents to the lifecycle controller.
type Source interface {
	Load(ctx context.Context) ([]*types.Curation, error)
}

// FileSource loads curation documents from one or more files.
type FileSource struct {
	Paths []string
}

// NewFileSource returns a Source reading the given files in order.
func NewFileSource(paths ...string) *FileSource {
	return &FileSource{Paths: paths}
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) ([]*types.Curation, error) {
	docs := make([]*types.Curation, 0, len(s.Paths))
	for _, p := range s.Paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := LoadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// StaticSource serves documents already held in memory.
type StaticSource []*types.Curation

// Load implements Source.
func (s StaticSource) Load(context.Context) ([]*types.Curation, error) {
	return s, nil
}

// LoadFile reads and parses the curation document at path.
func LoadFile(path string) (*types.Curation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read curation %s: %w", path, err)
	}
	doc, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("parse curation %s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes data in the given format. Structural problems such as a
// non-positive workshopId do not fail the parse: the index builder skips the
// affected triggers. Use Validate for a strict check.
func Parse(data []byte, format Format) (*types.Curation, error) {
	var doc types.Curation
	var err error

	switch format {
	case FormatJSON, FormatYAML:
		// sigs.k8s.io/yaml converts YAML to JSON first, so json tags apply to both.
		err = yaml.Unmarshal(data, &doc)
	case FormatTOML:
		err = toml.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the structural rules of a curation document and reports
// every violation.
func Validate(doc *types.Curation) error {
	var errs []error
	for i, p := range doc.Profiles {
		if p.WorkshopID <= 0 {
			errs = append(errs, fmt.Errorf("profiles[%d]: workshopId must be positive, got %d", i, p.WorkshopID))
		}
		for j, t := range p.ProfileTriggers {
			if strings.TrimSpace(t.ProcessName) == "" {
				errs = append(errs, fmt.Errorf("profiles[%d].profileTriggers[%d]: processName is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}
