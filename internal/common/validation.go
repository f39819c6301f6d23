package common

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MLNativeAI/PaperJet/internal/entity"
)

// fieldNameRe is the naming rule shared by fields, tables, and columns.
var fieldNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidEntityName reports whether a field/table/column name matches the
// naming rule: lowercase snake_case starting with a letter.
func ValidEntityName(name string) bool {
	return fieldNameRe.MatchString(name)
}

// ValidateFieldDefinition checks one field against the naming rule. Type is
// not constrained: unrecognized types extract as text.
func ValidateFieldDefinition(f entity.FieldDefinition) error {
	if !ValidEntityName(f.Name) {
		return InvalidArgumentErrorf("field name %q must match %s", f.Name, fieldNameRe.String())
	}
	return nil
}

// ValidateTableDefinition checks one table: named per the rule, at least one
// column, column names valid and unique within the table.
func ValidateTableDefinition(t entity.TableDefinition) error {
	if !ValidEntityName(t.Name) {
		return InvalidArgumentErrorf("table name %q must match %s", t.Name, fieldNameRe.String())
	}
	if len(t.Columns) == 0 {
		return InvalidArgumentErrorf("table %q must have at least one column", t.Name)
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, col := range t.Columns {
		if !ValidEntityName(col.Name) {
			return InvalidArgumentErrorf("column name %q in table %q must match %s", col.Name, t.Name, fieldNameRe.String())
		}
		if _, dup := seen[col.Name]; dup {
			return InvalidArgumentErrorf("duplicate column name %q in table %q", col.Name, t.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

// ValidateConfiguration checks a whole configuration document: every field
// and table valid on its own, names unique across the configuration.
func ValidateConfiguration(cfg entity.WorkflowConfiguration) error {
	fieldNames := make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if err := ValidateFieldDefinition(f); err != nil {
			return err
		}
		if _, dup := fieldNames[f.Name]; dup {
			return InvalidArgumentErrorf("duplicate field name %q", f.Name)
		}
		fieldNames[f.Name] = struct{}{}
	}
	tableNames := make(map[string]struct{}, len(cfg.Tables))
	for _, t := range cfg.Tables {
		if err := ValidateTableDefinition(t); err != nil {
			return err
		}
		if _, dup := tableNames[t.Name]; dup {
			return InvalidArgumentErrorf("duplicate table name %q", t.Name)
		}
		tableNames[t.Name] = struct{}{}
	}
	return nil
}

// ValidateCategoryRefs checks that every categoryId referenced by the
// configuration resolves to a category on the owning workflow. Empty
// categoryIds are tolerated for legacy flat configurations.
func ValidateCategoryRefs(cfg entity.WorkflowConfiguration, categories []entity.CategoryDefinition) error {
	known := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		known[c.CategoryID] = struct{}{}
	}
	var missing []string
	check := func(id string) {
		if id == "" {
			return
		}
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	for _, f := range cfg.Fields {
		check(f.CategoryID)
	}
	for _, t := range cfg.Tables {
		check(t.CategoryID)
	}
	if len(missing) > 0 {
		return InvalidArgumentError(fmt.Sprintf("unknown category reference(s): %s", strings.Join(missing, ", ")))
	}
	return nil
}
