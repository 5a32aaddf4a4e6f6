package models

// Database represents a logical database on a branch.
type Database struct {
	ID        int64   `json:"id"`
	BranchID  string  `json:"branch_id"`
	Name      string  `json:"name"`
	OwnerName string  `json:"owner_name"`
	CreatedAt *string `json:"created_at,omitempty"`
	UpdatedAt *string `json:"updated_at,omitempty"`
}
