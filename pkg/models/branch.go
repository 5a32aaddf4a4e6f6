package models

// Branch represents a branch within a Neon project.
type Branch struct {
	ID           string  `json:"id"`
	ProjectID    string  `json:"project_id"`
	Name         string  `json:"name"`
	ParentID     *string `json:"parent_id,omitempty"`
	CurrentState *string `json:"current_state,omitempty"`
	CreatedAt    *string `json:"created_at,omitempty"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}
