package entity

// FieldType is the user-facing type of a configured field or table column.
// Unrecognized values are tolerated and extracted as text.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeNumber   FieldType = "number"
	TypeDate     FieldType = "date"
	TypeCurrency FieldType = "currency"
	TypeBoolean  FieldType = "boolean"
)

// FieldDefinition is one scalar slot of a workflow configuration.
type FieldDefinition struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Type         FieldType `json:"type"`
	Required     bool      `json:"required"`
	CategoryID   string    `json:"categoryId,omitempty"`
	LastModified string    `json:"lastModified"`
}

// ColumnDefinition is one column of a configured table.
type ColumnDefinition struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Type        FieldType `json:"type"`
}

// TableDefinition is one repeating-row slot of a workflow configuration.
type TableDefinition struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	CategoryID   string             `json:"categoryId,omitempty"`
	Columns      []ColumnDefinition `json:"columns"`
	LastModified string             `json:"lastModified"`
}

// CategoryDefinition groups fields and tables for display and extraction
// ordering. Ordinals need not be contiguous.
type CategoryDefinition struct {
	CategoryID  string `json:"categoryId"`
	DisplayName string `json:"displayName"`
	Ordinal     int    `json:"ordinal"`
}

// WorkflowConfiguration is the user-editable extraction definition. It is
// persisted as a single JSON document on the workflow row.
type WorkflowConfiguration struct {
	Fields []FieldDefinition `json:"fields"`
	Tables []TableDefinition `json:"tables"`
}

// FieldByID returns the index of the field with the given id, or -1.
func (c *WorkflowConfiguration) FieldByID(id string) int {
	for i := range c.Fields {
		if c.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// TableByID returns the index of the table with the given id, or -1.
func (c *WorkflowConfiguration) TableByID(id string) int {
	for i := range c.Tables {
		if c.Tables[i].ID == id {
			return i
		}
	}
	return -1
}

// EmptyConfiguration is the seed configuration for a freshly created workflow.
func EmptyConfiguration() WorkflowConfiguration {
	return WorkflowConfiguration{Fields: []FieldDefinition{}, Tables: []TableDefinition{}}
}
