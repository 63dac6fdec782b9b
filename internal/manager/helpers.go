package manager

import (
	"os"
	"strconv"

	"ragd/pkg/types"
)

// Helper: find model in registry by id.
func (m *Manager) getModelByID(id string) (types.Model, bool) {
	for _, mdl := range m.registry {
		if mdl.ID == id {
			return mdl, true
		}
	}
	return types.Model{}, false
}

// Helper: estimate resident size in MB. The catalog value wins; otherwise the
// file size is used. Unknown sizes count as 1MB so budgets are never bypassed.
func estimateMB(mdl types.Model) int {
	if mdl.SizeMB > 0 {
		return mdl.SizeMB
	}
	fi, err := os.Stat(mdl.Path)
	if err != nil {
		return 1
	}
	mb := int(fi.Size() / (1024 * 1024))
	if mb <= 0 {
		mb = 1
	}
	return mb
}

// candidates returns the ordered, de-duplicated list of models to try.
func (m *Manager) candidates(requested string) []string {
	out := []string{requested}
	seen := map[string]bool{requested: true}
	for _, id := range m.fallback {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (m *Manager) nextOpID() string {
	return "op-" + strconv.FormatUint(m.opSeq.Add(1), 10)
}
