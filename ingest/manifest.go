package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/teranos/FINQ/errors"
)

// Manifest lists files to ingest in one pass. It is written as YAML
//
//	sources:
//	  - dataset: acme-2024
//	    path: exports/qb_2024.json
//
// or as TOML with [[sources]] tables. Relative paths resolve against the
// manifest's directory.
type Manifest struct {
	Sources []ManifestEntry `yaml:"sources" toml:"sources"`
}

// ManifestEntry is one file of a manifest. Format is optional.
type ManifestEntry struct {
	Dataset string `yaml:"dataset" toml:"dataset"`
	Format  string `yaml:"format,omitempty" toml:"format,omitempty"`
	Path    string `yaml:"path" toml:"path"`
}

// Job is a resolved manifest entry ready for Ingest.
type Job struct {
	DatasetID string
	Source    Source
}

// LoadManifest reads a manifest and resolves every entry. The encoding is
// chosen by extension: .toml for TOML, anything else as YAML.
func LoadManifest(path string) ([]Job, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("manifest %s", path)
		}
		return nil, errors.Wrapf(err, "read manifest %s", path)
	}

	var m Manifest
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		err = toml.Unmarshal(raw, &m)
	} else {
		err = yaml.Unmarshal(raw, &m)
	}
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidRequest, "parse manifest %s: %v", path, err)
	}
	if len(m.Sources) == 0 {
		return nil, errors.WithHint(
			errors.NewInvalidRequestError("manifest %s lists no sources", path),
			"add a sources list with dataset and path entries")
	}

	base := filepath.Dir(path)
	jobs := make([]Job, 0, len(m.Sources))
	for i, e := range m.Sources {
		if strings.TrimSpace(e.Dataset) == "" || strings.TrimSpace(e.Path) == "" {
			return nil, errors.Wrapf(errors.ErrMissingField, "manifest entry %d needs dataset and path", i)
		}

		p := e.Path
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		src, err := Describe(p, e.Format)
		if err != nil {
			return nil, errors.Wrapf(err, "manifest entry %d", i)
		}
		jobs = append(jobs, Job{DatasetID: e.Dataset, Source: src})
	}
	return jobs, nil
}

// IngestManifest ingests every manifest entry in order. It stops at the
// first failing file and returns the results of the files before it.
func (l *Loader) IngestManifest(ctx context.Context, path string) ([]*Result, error) {
	jobs, err := LoadManifest(path)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, 0, len(jobs))
	for _, job := range jobs {
		res, err := l.Ingest(ctx, job.DatasetID, job.Source)
		if err != nil {
			if res != nil {
				results = append(results, res)
			}
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}
