package models

// ComputeEndpoint is a network host attached to a branch that serves
// SQL over the data plane. Only the fields the daemon needs are
// decoded; the API returns more.
type ComputeEndpoint struct {
	ID       string `json:"id"`
	Host     string `json:"host"`
	BranchID string `json:"branch_id"`
}
