package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragd/internal/common/fsutil"
	"ragd/pkg/types"
)

// GGUFScanner builds catalog entries from the *.gguf files in a directory.
type GGUFScanner struct{}

func NewGGUFScanner() *GGUFScanner { return &GGUFScanner{} }

// Scan returns one model per *.gguf file (case-insensitive), sorted by file
// name. ID and Name are the file name; SizeMB is taken from the file size.
func (s *GGUFScanner) Scan(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		mdl := types.Model{ID: name, Name: name, Path: filepath.Join(abs, name)}
		if fi, err := e.Info(); err == nil {
			mdl.SizeMB = int((fi.Size() + (1<<20 - 1)) >> 20)
		}
		models = append(models, mdl)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].ID < models[j].ID })
	return models, nil
}

// LoadDir scans dir for *.gguf files.
func LoadDir(dir string) ([]types.Model, error) {
	return NewGGUFScanner().Scan(dir)
}
