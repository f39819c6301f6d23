package llm

// SlotKind is the contract-side type of one extraction slot. Every slot is
// nullable: a value the model cannot resolve comes back as JSON null.
type SlotKind int

const (
	SlotText SlotKind = iota
	SlotNumber
	SlotDate
	SlotCurrency
	SlotBoolean
)

// FieldSlot is one named scalar slot of a contract.
type FieldSlot struct {
	Name string
	Kind SlotKind
}

// TableSlot is one named array-of-row-objects slot of a contract.
type TableSlot struct {
	Name    string
	Columns []FieldSlot
}

// Contract is the machine-checkable extraction contract synthesized from a
// workflow configuration: one nullable slot per field, one row-array slot
// per table, plus the prompt enumerating them for the model.
type Contract struct {
	Fields []FieldSlot
	Tables []TableSlot
	Prompt string
}

// slotForType maps a configured type onto a contract slot kind. Unrecognized
// types degrade to text rather than failing synthesis.
func slotForType(t string) SlotKind {
	switch t {
	case "number":
		return SlotNumber
	case "date":
		return SlotDate
	case "currency":
		return SlotCurrency
	case "boolean":
		return SlotBoolean
	default:
		return SlotText
	}
}

// jsonType is the nullable JSON-Schema type for a slot kind. Dates and text
// travel as strings; currency travels as a bare number.
func (k SlotKind) jsonType() []string {
	switch k {
	case SlotNumber, SlotCurrency:
		return []string{"number", "null"}
	case SlotBoolean:
		return []string{"boolean", "null"}
	default:
		return []string{"string", "null"}
	}
}

// JSONSchema renders the contract as a JSON-Schema (draft 2020-12 subset)
// generic map. It is deterministic: the same configuration always yields the
// same key set and types. We hand this to the model as the structured-output
// constraint and also use it locally to validate the raw response.
func (c *Contract) JSONSchema() map[string]any {
	props := make(map[string]any, len(c.Fields)+len(c.Tables))
	required := make([]string, 0, len(c.Fields)+len(c.Tables))

	for _, f := range c.Fields {
		props[f.Name] = map[string]any{"type": f.Kind.jsonType()}
		required = append(required, f.Name)
	}
	for _, t := range c.Tables {
		cols := make(map[string]any, len(t.Columns))
		colRequired := make([]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols[col.Name] = map[string]any{"type": col.Kind.jsonType()}
			colRequired = append(colRequired, col.Name)
		}
		props[t.Name] = map[string]any{
			"type": "array",
			"items": map[string]any{
				"type":       "object",
				"properties": cols,
				"required":   colRequired,
			},
		}
		required = append(required, t.Name)
	}

	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
