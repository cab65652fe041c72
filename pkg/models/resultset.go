// Package models provides the data structures shared between the
// extraction, Parquet, and warehouse layers. A ResultSet is the
// materialized form of one table export or custom query; it lives only
// for the duration of a single work item.
package models

// FieldType specifies the logical type of a column
type FieldType string

const (
	// FieldTypeBool is a boolean column
	FieldTypeBool FieldType = "bool"
	// FieldTypeInt is a 64-bit integer column
	FieldTypeInt FieldType = "int"
	// FieldTypeFloat is a 64-bit float column
	FieldTypeFloat FieldType = "float"
	// FieldTypeString is a UTF-8 string column
	FieldTypeString FieldType = "string"
	// FieldTypeBinary is a raw byte column
	FieldTypeBinary FieldType = "binary"
	// FieldTypeTimestamp is a nanosecond-precision timestamp column
	FieldTypeTimestamp FieldType = "timestamp"
)

// Field describes a single column
type Field struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Nullable bool      `json:"nullable"`
}

// Schema describes the column set of a ResultSet
type Schema struct {
	Fields []Field `json:"fields"`
}

// FieldNames returns the column names in schema order
func (s *Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// ResultSet is an in-memory tabular result with a fixed schema.
// Rows are row-major; a nil cell is a SQL NULL. Cell values are
// normalized to bool, int64, float64, string, []byte, or time.Time.
type ResultSet struct {
	Schema *Schema
	Rows   [][]interface{}
}

// NewResultSet creates an empty result set with the given schema
func NewResultSet(schema *Schema) *ResultSet {
	return &ResultSet{Schema: schema}
}

// NumRows returns the number of rows
func (rs *ResultSet) NumRows() int64 {
	return int64(len(rs.Rows))
}

// NumCols returns the number of columns
func (rs *ResultSet) NumCols() int {
	if rs.Schema == nil {
		return 0
	}
	return len(rs.Schema.Fields)
}

// Append adds one row. The row must match the schema's column count;
// callers are trusted because rows come straight from a driver scan.
func (rs *ResultSet) Append(row []interface{}) {
	rs.Rows = append(rs.Rows, row)
}
