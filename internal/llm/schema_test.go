package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MLNativeAI/PaperJet/internal/entity"
)

func sampleConfig() entity.WorkflowConfiguration {
	return entity.WorkflowConfiguration{
		Fields: []entity.FieldDefinition{
			{ID: "fld_1", Name: "invoice_number", Description: "The invoice number", Type: entity.TypeText},
			{ID: "fld_2", Name: "total_amount", Description: "Grand total", Type: entity.TypeCurrency},
			{ID: "fld_3", Name: "issue_date", Description: "Date of issue", Type: entity.TypeDate},
			{ID: "fld_4", Name: "is_paid", Description: "Paid flag", Type: entity.TypeBoolean},
		},
		Tables: []entity.TableDefinition{
			{
				ID: "tbl_1", Name: "line_items", Description: "Invoice line items",
				Columns: []entity.ColumnDefinition{
					{ID: "col_1", Name: "description", Description: "Item description", Type: entity.TypeText},
					{ID: "col_2", Name: "quantity", Description: "Units", Type: entity.TypeNumber},
				},
			},
		},
	}
}

func TestSynthesize(t *testing.T) {
	cfg := sampleConfig()

	t.Run("slots follow configuration order", func(t *testing.T) {
		c := Synthesize(cfg)
		require.Len(t, c.Fields, 4)
		assert.Equal(t, "invoice_number", c.Fields[0].Name)
		assert.Equal(t, "is_paid", c.Fields[3].Name)
		require.Len(t, c.Tables, 1)
		assert.Equal(t, "line_items", c.Tables[0].Name)
		require.Len(t, c.Tables[0].Columns, 2)
	})

	t.Run("deterministic", func(t *testing.T) {
		a := Synthesize(cfg)
		b := Synthesize(cfg)
		assert.Equal(t, a, b)
	})

	t.Run("unrecognized type degrades to text", func(t *testing.T) {
		c := Synthesize(entity.WorkflowConfiguration{
			Fields: []entity.FieldDefinition{{Name: "mystery", Type: "percentage"}},
		})
		assert.Equal(t, SlotText, c.Fields[0].Kind)
	})
}

func TestContractJSONSchema(t *testing.T) {
	schema := Synthesize(sampleConfig()).JSONSchema()

	assert.Equal(t, "object", schema["type"])
	required, ok := schema["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"invoice_number", "total_amount", "issue_date", "is_paid", "line_items"}, required)

	props := schema["properties"].(map[string]any)

	t.Run("every slot is nullable", func(t *testing.T) {
		assert.Equal(t, []string{"string", "null"}, props["invoice_number"].(map[string]any)["type"])
		assert.Equal(t, []string{"number", "null"}, props["total_amount"].(map[string]any)["type"])
		assert.Equal(t, []string{"string", "null"}, props["issue_date"].(map[string]any)["type"])
		assert.Equal(t, []string{"boolean", "null"}, props["is_paid"].(map[string]any)["type"])
	})

	t.Run("tables are arrays of row objects", func(t *testing.T) {
		table := props["line_items"].(map[string]any)
		assert.Equal(t, "array", table["type"])
		items := table["items"].(map[string]any)
		assert.Equal(t, "object", items["type"])
		cols := items["properties"].(map[string]any)
		assert.Equal(t, []string{"number", "null"}, cols["quantity"].(map[string]any)["type"])
		assert.ElementsMatch(t, []string{"description", "quantity"}, items["required"].([]string))
	})
}

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := BuildExtractionPrompt(sampleConfig())

	assert.True(t, strings.HasPrefix(prompt, "Extract the following information from this document:"))
	assert.Contains(t, prompt, "FIELDS TO EXTRACT:")
	assert.Contains(t, prompt, "- invoice_number (text): The invoice number")
	assert.Contains(t, prompt, "TABLES TO EXTRACT:")
	assert.Contains(t, prompt, "- line_items: Invoice line items")
	assert.Contains(t, prompt, "    - quantity (number): Units")
	assert.Contains(t, prompt, "If a field is not found or unclear, return null")

	t.Run("table section omitted without tables", func(t *testing.T) {
		p := BuildExtractionPrompt(entity.WorkflowConfiguration{
			Fields: []entity.FieldDefinition{{Name: "vendor", Type: entity.TypeText}},
		})
		assert.NotContains(t, p, "TABLES TO EXTRACT:")
	})
}
