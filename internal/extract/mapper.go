package extract

import (
	"github.com/MLNativeAI/PaperJet/internal/entity"
)

// MapResult normalizes a raw extraction object into a shape-complete result:
// one slot per configured field and table, in configuration order, with nil
// for anything the model omitted. Total for any well-formed configuration,
// including a nil or partial raw object.
func MapResult(cfg entity.WorkflowConfiguration, raw map[string]any) entity.ExtractionResult {
	result := entity.ExtractionResult{
		Fields: make([]entity.ExtractedValue, 0, len(cfg.Fields)),
		Tables: make([]entity.ExtractedTable, 0, len(cfg.Tables)),
	}

	for _, f := range cfg.Fields {
		var value any
		if raw != nil {
			value = raw[f.Name]
		}
		result.Fields = append(result.Fields, entity.ExtractedValue{
			FieldName: f.Name,
			Value:     value,
		})
	}

	for _, t := range cfg.Tables {
		rows := []entity.TableRow{}
		if raw != nil {
			if arr, ok := raw[t.Name].([]any); ok {
				for _, item := range arr {
					values, ok := item.(map[string]any)
					if !ok {
						continue
					}
					rows = append(rows, entity.TableRow{Values: values})
				}
			}
		}
		result.Tables = append(result.Tables, entity.ExtractedTable{
			TableName: t.Name,
			Rows:      rows,
		})
	}

	return result
}
