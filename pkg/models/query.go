package models

import "encoding/json"

// QueryResult is a convenience decode shape for data-plane responses.
// The daemon passes SQL results through verbatim; this type exists for
// clients (and tests) that want a typed view.
type QueryResult struct {
	Columns  []string            `json:"columns"`
	Rows     [][]json.RawMessage `json:"rows"`
	RowCount int64               `json:"row_count"`
}
