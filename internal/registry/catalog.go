// Package registry maps model ids to files on disk and their footprint.
package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"ragd/internal/common/fsutil"
	"ragd/pkg/types"
)

//go:embed models.yaml
var defaultCatalog []byte

// Catalog is the parsed form of a models.yaml file.
type Catalog struct {
	// Default is the model loaded when nothing else was requested.
	Default string `yaml:"default"`
	// Fallback is tried in order when the requested model fails to start.
	Fallback []string      `yaml:"fallback"`
	Models   []types.Model `yaml:"models"`
}

// Parse decodes and validates a catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadCatalog reads a catalog file. Relative model paths are resolved against
// modelsDir, or against the catalog's directory when modelsDir is empty.
func LoadCatalog(path, modelsDir string) (*Catalog, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if modelsDir == "" {
		modelsDir = filepath.Dir(p)
	}
	return c, c.resolve(modelsDir)
}

// DefaultCatalog returns the built-in catalog with paths resolved against
// modelsDir.
func DefaultCatalog(modelsDir string) (*Catalog, error) {
	c, err := Parse(defaultCatalog)
	if err != nil {
		return nil, err
	}
	return c, c.resolve(modelsDir)
}

// Load picks the catalog source: an explicit catalog file, else the *.gguf
// files in modelsDir, else the built-in catalog.
func Load(catalogPath, modelsDir string) (*Catalog, error) {
	if catalogPath != "" {
		return LoadCatalog(catalogPath, modelsDir)
	}
	if modelsDir != "" {
		models, err := LoadDir(modelsDir)
		if err == nil && len(models) > 0 {
			return &Catalog{Default: models[0].ID, Models: models}, nil
		}
	}
	return DefaultCatalog(modelsDir)
}

// Validate checks ids are present and unique, and that the default and
// fallback ids exist.
func (c *Catalog) Validate() error {
	if len(c.Models) == 0 {
		return errors.New("catalog has no models")
	}
	seen := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.ID == "" {
			return fmt.Errorf("model %d: missing id", i)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}
	if c.Default != "" && !seen[c.Default] {
		return fmt.Errorf("default model %q not in catalog", c.Default)
	}
	for _, id := range c.Fallback {
		if !seen[id] {
			return fmt.Errorf("fallback model %q not in catalog", id)
		}
	}
	return nil
}

func (c *Catalog) resolve(dir string) error {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return err
	}
	for i := range c.Models {
		p := c.Models[i].Path
		if p == "" || filepath.IsAbs(p) {
			continue
		}
		if p, err = fsutil.ExpandHome(p); err != nil {
			return err
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		c.Models[i].Path = p
	}
	return nil
}

// Lookup returns the entry for id.
func (c *Catalog) Lookup(id string) (types.Model, bool) {
	for _, m := range c.Models {
		if m.ID == id {
			return m, true
		}
	}
	return types.Model{}, false
}
