package models

// TableInfo describes a user table discovered via the catalog query.
type TableInfo struct {
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	RowCount *int64 `json:"row_count,omitempty"`
}

// ColumnInfo describes one column of a table.
type ColumnInfo struct {
	ColumnName    string  `json:"column_name"`
	DataType      string  `json:"data_type"`
	IsNullable    bool    `json:"is_nullable"`
	ColumnDefault *string `json:"column_default,omitempty"`
}
