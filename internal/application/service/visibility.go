package service

import (
	"github.com/payhub/approval-engine/internal/application/port"
	"github.com/payhub/approval-engine/internal/domain/entity"
)

// stageAllowsUser reports whether a user may decide the given stage: either
// the user id is in the stage's assigned users or the user's role code is in
// the stage's assigned roles. A stage with no assignment data at all is
// decidable by nobody (fail-closed).
func stageAllowsUser(stage *entity.StageDefinition, user *entity.User) bool {
	for _, id := range stage.AssignedUserIDs {
		if id == user.ID {
			return true
		}
	}
	for _, role := range stage.AssignedRoleCodes {
		if role != "" && role == user.RoleCode {
			return true
		}
	}
	return false
}

// isActionable is the single visibility predicate: it is the only place the
// "which instances can user U act on" rule lives, whether evaluated against
// a broad fetch or a single instance.
//
// An instance is actionable iff it is in_progress, the user holds a stage
// assignment, and project-scope rules permit visibility. Instances with no
// linked invoice are direct payments and exempt from project scoping.
func isActionable(user *entity.User, cand *port.ActionableCandidate) bool {
	if cand.Instance == nil || cand.Stage == nil {
		return false
	}
	if !cand.Instance.IsActive() {
		return false
	}
	if !stageAllowsUser(cand.Stage, user) {
		return false
	}

	if user.ViewOwnProjectOnly && cand.Instance.InvoiceID != nil {
		if cand.ProjectID == nil {
			return false
		}
		return user.CanSeeProject(*cand.ProjectID)
	}

	return true
}
