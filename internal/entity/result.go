package entity

// ExtractedValue is one field slot of an extraction result. Value is a
// string, float64, bool, or nil depending on the configured type.
type ExtractedValue struct {
	FieldName string `json:"fieldName"`
	Value     any    `json:"value"`
}

// TableRow is one extracted row, keyed by column name.
type TableRow struct {
	Values map[string]any `json:"values"`
}

// ExtractedTable is one table slot of an extraction result.
type ExtractedTable struct {
	TableName string     `json:"tableName"`
	Rows      []TableRow `json:"rows"`
}

// ExtractionResult mirrors a WorkflowConfiguration slot for slot: every
// configured field and table has exactly one entry, value or not.
type ExtractionResult struct {
	Fields []ExtractedValue `json:"fields"`
	Tables []ExtractedTable `json:"tables"`
}

// EmptyResult is the seed sample result for a freshly created workflow.
func EmptyResult() ExtractionResult {
	return ExtractionResult{Fields: []ExtractedValue{}, Tables: []ExtractedTable{}}
}
