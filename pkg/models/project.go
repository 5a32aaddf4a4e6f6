// Package models contains the wire types exchanged with the Neon API.
// Optional fields are pointers so that absent and empty stay distinct;
// timestamps are kept as strings because the daemon passes them through
// without interpreting them.
package models

// Project represents a Neon project.
type Project struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	RegionID   *string `json:"region_id,omitempty"`
	PlatformID *string `json:"platform_id,omitempty"`
	PgVersion  *int    `json:"pg_version,omitempty"`
	CreatedAt  *string `json:"created_at,omitempty"`
	UpdatedAt  *string `json:"updated_at,omitempty"`
}
