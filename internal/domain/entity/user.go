package entity

// User is the engine-side projection of the identity provider: enough to
// authorize stage decisions, scope visibility and enrich history entries.
type User struct {
	ID                 string  `json:"id"`
	DisplayName        string  `json:"display_name"`
	Email              string  `json:"email"`
	RoleCode           string  `json:"role_code"`
	LarkOpenID         string  `json:"lark_open_id,omitempty"`
	ViewOwnProjectOnly bool    `json:"view_own_project_only"`
	ProjectIDs         []int64 `json:"project_ids"`
}

// CanSeeProject reports whether project-scope rules allow the user to see
// work tied to the given project. Users without the restriction see
// everything; restricted users with no assigned projects see nothing.
func (u *User) CanSeeProject(projectID int64) bool {
	if !u.ViewOwnProjectOnly {
		return true
	}
	for _, id := range u.ProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}
