package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
	"github.com/MLNativeAI/PaperJet/internal/llm"
	"github.com/MLNativeAI/PaperJet/internal/utils"
)

const analysisPrompt = `Analyze this document and propose an extraction configuration for documents of the same shape.

Return:
- workflowName: a short human-readable name for this document type
- description: one sentence describing the document type
- categories: logical groups for the extracted data, each with a categoryId (lowercase snake_case), displayName, and ordinal (display order)
- fields: every scalar value worth extracting, each with a name (lowercase snake_case, unique), description, type (one of: text, number, date, currency, boolean), required flag, and the categoryId it belongs to
- tables: every repeating-row structure, each with a name (lowercase snake_case, unique), description, categoryId, and at least one column (name, description, type from the same type list)

Name fields after what the value is, not where it sits in the document.`

// analysisSchema is the fixed structured-output constraint for document
// analysis. Ids are minted locally after parsing; the model never invents ids.
func analysisSchema() map[string]any {
	typeEnum := map[string]any{"type": "string", "enum": []string{"text", "number", "date", "currency", "boolean"}}
	name := map[string]any{"type": "string", "pattern": `^[a-z][a-z0-9_]*$`}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflowName": map[string]any{"type": "string", "minLength": 1},
			"description":  map[string]any{"type": "string"},
			"categories": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"categoryId":  name,
						"displayName": map[string]any{"type": "string"},
						"ordinal":     map[string]any{"type": "integer"},
					},
					"required": []string{"categoryId", "displayName", "ordinal"},
				},
			},
			"fields": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        name,
						"description": map[string]any{"type": "string"},
						"type":        typeEnum,
						"required":    map[string]any{"type": "boolean"},
						"categoryId":  name,
					},
					"required": []string{"name", "description", "type", "required", "categoryId"},
				},
			},
			"tables": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":        name,
						"description": map[string]any{"type": "string"},
						"categoryId":  name,
						"columns": map[string]any{
							"type":     "array",
							"minItems": 1,
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"name":        name,
									"description": map[string]any{"type": "string"},
									"type":        typeEnum,
								},
								"required": []string{"name", "description", "type"},
							},
						},
					},
					"required": []string{"name", "description", "categoryId", "columns"},
				},
			},
		},
		"required": []string{"workflowName", "description", "categories", "fields", "tables"},
	}
}

type analysisPayload struct {
	WorkflowName string `json:"workflowName"`
	Description  string `json:"description"`
	Categories   []struct {
		CategoryID  string `json:"categoryId"`
		DisplayName string `json:"displayName"`
		Ordinal     int    `json:"ordinal"`
	} `json:"categories"`
	Fields []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Type        string `json:"type"`
		Required    bool   `json:"required"`
		CategoryID  string `json:"categoryId"`
	} `json:"fields"`
	Tables []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		CategoryID  string `json:"categoryId"`
		Columns     []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"columns"`
	} `json:"tables"`
}

// Analyze implements llm.DocumentAnalyzer: one structured call that proposes
// name, description, categories, fields, and tables for the document.
func (c *Client) Analyze(ctx context.Context, doc llm.Document) (*llm.AnalysisResult, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.APIKey == "" {
		return nil, common.FailedPreconditionError("GEMINI_API_KEY is not configured")
	}

	c.logger.Info("llm.analyze.start", "req_id", rid, "model", c.cfg.Model, "mime_type", doc.MimeType)

	schema := analysisSchema()
	content := analysisPrompt + "\n\nReturn ONLY JSON that matches this JSON Schema:\n" + mustJSON(schema)
	raw, err := c.generate(ctx, content, doc)
	if err != nil {
		c.logger.Error("llm.analyze.http_error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	if err := llm.ValidateJSONAgainstSchema(schema, raw); err != nil {
		c.logger.Error("llm.analyze.schema_validation_failed", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, fmt.Errorf("analysis schema validation failed: %w", err)
	}

	var payload analysisPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal analysis: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result := &llm.AnalysisResult{
		WorkflowName: payload.WorkflowName,
		Description:  payload.Description,
	}
	for _, cat := range payload.Categories {
		result.Categories = append(result.Categories, entity.CategoryDefinition{
			CategoryID:  cat.CategoryID,
			DisplayName: cat.DisplayName,
			Ordinal:     cat.Ordinal,
		})
	}
	for _, f := range payload.Fields {
		result.Fields = append(result.Fields, entity.FieldDefinition{
			ID:           utils.NewID(utils.PrefixField),
			Name:         f.Name,
			Description:  f.Description,
			Type:         entity.FieldType(f.Type),
			Required:     f.Required,
			CategoryID:   f.CategoryID,
			LastModified: now,
		})
	}
	for _, t := range payload.Tables {
		cols := make([]entity.ColumnDefinition, 0, len(t.Columns))
		for _, col := range t.Columns {
			cols = append(cols, entity.ColumnDefinition{
				ID:          utils.NewID(utils.PrefixColumn),
				Name:        col.Name,
				Description: col.Description,
				Type:        entity.FieldType(col.Type),
			})
		}
		result.Tables = append(result.Tables, entity.TableDefinition{
			ID:           utils.NewID(utils.PrefixTable),
			Name:         t.Name,
			Description:  t.Description,
			CategoryID:   t.CategoryID,
			Columns:      cols,
			LastModified: now,
		})
	}

	c.logger.Info("llm.analyze.ok",
		"req_id", rid,
		"workflow_name", result.WorkflowName,
		"categories", len(result.Categories),
		"fields", len(result.Fields),
		"tables", len(result.Tables),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
