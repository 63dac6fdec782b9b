package manager

import "ragd/pkg/types"

// checkBudget verifies that mdl fits into the memory budget. The resident
// model is always released before a load, so only the candidate counts.
// A zero budget disables the check.
func (m *Manager) checkBudget(mdl types.Model) error {
	if m.budgetMB <= 0 {
		return nil
	}
	req := estimateMB(mdl)
	if req+m.marginMB <= m.budgetMB {
		return nil
	}
	return &InsufficientResourcesError{
		ModelID:    mdl.ID,
		RequiredMB: req,
		BudgetMB:   m.budgetMB,
		MarginMB:   m.marginMB,
	}
}
