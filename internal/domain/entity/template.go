package entity

import "time"

// WorkflowTemplate is a named, ordered approval pipeline. Templates are
// matched to payments through their applicability sets; an empty set on a
// dimension means the template applies to every value of that dimension.
type WorkflowTemplate struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	IsActive          bool              `json:"is_active"`
	Priority          int               `json:"priority"`
	InvoiceTypeIDs    []int64           `json:"invoice_type_ids"`
	ContractorTypeIDs []int64           `json:"contractor_type_ids"`
	ProjectIDs        []int64           `json:"project_ids"`
	Stages            []StageDefinition `json:"stages"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// StageDefinition is one approval checkpoint within a template, identified
// by its 1-based position. A stage is decidable by any of its assigned users
// or by any user holding one of its assigned role codes.
type StageDefinition struct {
	ID                int64    `json:"id"`
	TemplateID        int64    `json:"template_id"`
	Position          int      `json:"position"`
	Name              string   `json:"name"`
	AssignedUserIDs   []string `json:"assigned_user_ids"`
	AssignedRoleCodes []string `json:"assigned_role_codes"`
}

// StageAt returns the stage at the given 1-based position, or nil.
func (t *WorkflowTemplate) StageAt(position int) *StageDefinition {
	for i := range t.Stages {
		if t.Stages[i].Position == position {
			return &t.Stages[i]
		}
	}
	return nil
}

// StageByID returns the stage with the given id, or nil.
func (t *WorkflowTemplate) StageByID(id int64) *StageDefinition {
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i]
		}
	}
	return nil
}

// Matches reports whether the template applies to the given payment
// dimensions. Every dimension must either be a wildcard (empty set) or
// contain the supplied id.
func (t *WorkflowTemplate) Matches(invoiceTypeID, contractorTypeID int64, projectID *int64) bool {
	if !matchDimension(t.InvoiceTypeIDs, invoiceTypeID) {
		return false
	}
	if !matchDimension(t.ContractorTypeIDs, contractorTypeID) {
		return false
	}
	if len(t.ProjectIDs) > 0 {
		if projectID == nil {
			return false
		}
		return containsInt64(t.ProjectIDs, *projectID)
	}
	return true
}

func matchDimension(set []int64, id int64) bool {
	if len(set) == 0 {
		return true
	}
	return containsInt64(set, id)
}

func containsInt64(set []int64, id int64) bool {
	for _, v := range set {
		if v == id {
			return true
		}
	}
	return false
}
