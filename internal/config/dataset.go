package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/asvimport/internal/importerr"
)

// DatasetMeta is the content of a dataset metadata file:
//
//	dataset_id: SHARK-2019-001
//	provider_email: data@example.org
type DatasetMeta struct {
	DatasetID     string `yaml:"dataset_id"`
	ProviderEmail string `yaml:"provider_email"`
}

// ReadDatasetMeta parses a dataset metadata file. Unknown keys are errors.
func ReadDatasetMeta(path string) (*DatasetMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var meta DatasetMeta
	if err := dec.Decode(&meta); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return &meta, nil
}

// ResolveDataset fills DatasetID and ProviderEmail from the dataset file
// where the environment left them empty, then generates a dataset id if
// there still is none. A missing dataset file is not an error.
func (c *ImportConfig) ResolveDataset() error {
	if c.DatasetFile != "" {
		path := c.DatasetFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(c.InputDir, path)
		}
		meta, err := ReadDatasetMeta(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return importerr.Wrap(err, importerr.ConfigError, "read dataset file", path)
		default:
			if c.DatasetID == "" {
				c.DatasetID = meta.DatasetID
			}
			if c.ProviderEmail == "" {
				c.ProviderEmail = meta.ProviderEmail
			}
		}
	}

	if c.DatasetID == "" {
		c.DatasetID = uuid.NewString()
		c.GeneratedID = true
	}
	return nil
}
