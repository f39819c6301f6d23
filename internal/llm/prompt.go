package llm

import (
	"fmt"
	"strings"

	"github.com/MLNativeAI/PaperJet/internal/entity"
)

// Synthesize turns a workflow configuration into an extraction contract:
// ordered slots for the schema plus the enumerating prompt. Same
// configuration in, isomorphic contract out, always.
func Synthesize(cfg entity.WorkflowConfiguration) *Contract {
	c := &Contract{
		Fields: make([]FieldSlot, 0, len(cfg.Fields)),
		Tables: make([]TableSlot, 0, len(cfg.Tables)),
	}
	for _, f := range cfg.Fields {
		c.Fields = append(c.Fields, FieldSlot{Name: f.Name, Kind: slotForType(string(f.Type))})
	}
	for _, t := range cfg.Tables {
		cols := make([]FieldSlot, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols = append(cols, FieldSlot{Name: col.Name, Kind: slotForType(string(col.Type))})
		}
		c.Tables = append(c.Tables, TableSlot{Name: t.Name, Columns: cols})
	}
	c.Prompt = BuildExtractionPrompt(cfg)
	return c
}

// BuildExtractionPrompt enumerates every configured field and table with
// name, type, and description, followed by the fixed extraction instructions.
func BuildExtractionPrompt(cfg entity.WorkflowConfiguration) string {
	fieldLines := make([]string, 0, len(cfg.Fields))
	for _, f := range cfg.Fields {
		fieldLines = append(fieldLines, fmt.Sprintf("- %s (%s): %s", f.Name, f.Type, f.Description))
	}

	tableLines := make([]string, 0, len(cfg.Tables))
	for _, t := range cfg.Tables {
		colLines := make([]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			colLines = append(colLines, fmt.Sprintf("    - %s (%s): %s", col.Name, col.Type, col.Description))
		}
		tableLines = append(tableLines, fmt.Sprintf("- %s: %s\n%s", t.Name, t.Description, strings.Join(colLines, "\n")))
	}

	var b strings.Builder
	b.WriteString("Extract the following information from this document:\n\n")
	b.WriteString("FIELDS TO EXTRACT:\n")
	b.WriteString(strings.Join(fieldLines, "\n"))
	b.WriteString("\n\n")
	if len(tableLines) > 0 {
		b.WriteString("TABLES TO EXTRACT:\n")
		b.WriteString(strings.Join(tableLines, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString(`Instructions:
- Extract exact values as they appear in the document
- For currency fields, extract as numbers (remove currency symbols)
- For date fields, use ISO format (YYYY-MM-DD)
- For boolean fields, return true/false based on presence or checkmarks
- If a field is not found or unclear, return null
- For tables, extract all rows found
- Maintain data accuracy and completeness`)
	return b.String()
}
