package manager

import (
	"time"

	"ragd/pkg/types"
)

// State represents the lifecycle state of the runtime.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateReady     State = "ready"
	StateSwitching State = "switching"
)

// ModelInfo is a minimal view of the active model.
type ModelInfo struct {
	ID          string
	Name        string
	Path        string
	Params      string
	QualityTier string
	Description string
}

func modelInfoOf(mdl types.Model) *ModelInfo {
	return &ModelInfo{
		ID:          mdl.ID,
		Name:        mdl.DisplayName(),
		Path:        mdl.Path,
		Params:      mdl.Params,
		QualityTier: mdl.QualityTier,
		Description: mdl.Description,
	}
}

// Snapshot is a read-only projection of the manager state.
type Snapshot struct {
	State        State
	CurrentModel *ModelInfo
	Err          string
}

// instance is the resident runtime session.
type instance struct {
	model    types.Model
	session  InferSession
	estMB    int
	loadedAt time.Time
	lastUsed time.Time
}
