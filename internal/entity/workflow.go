package entity

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/MLNativeAI/PaperJet/constants"
)

// Workflow represents a workflow for data transfer between layers. It owns
// exactly one configuration and one most-recent sample extraction.
type Workflow struct {
	ID                    string                   `json:"id"`
	Name                  string                   `json:"name"`
	Description           string                   `json:"description"`
	Categories            []CategoryDefinition     `json:"categories"`
	Configuration         WorkflowConfiguration    `json:"configuration"`
	SampleData            *ExtractionResult        `json:"sampleData,omitempty"`
	SampleDataExtractedAt *time.Time               `json:"sampleDataExtractedAt,omitempty"`
	FileID                string                   `json:"fileId"`
	Status                constants.WorkflowStatus `json:"status"`
	OwnerID               string                   `json:"ownerId"`
	CreatedAt             time.Time                `json:"createdAt"`
	UpdatedAt             time.Time                `json:"updatedAt"`

	// Version is the optimistic-concurrency token; writes carry the version
	// they read and fail if another writer got there first.
	Version int64 `json:"version"`
}

// CategoryByID returns the index of the category with the given id, or -1.
func (w *Workflow) CategoryByID(id string) int {
	for i := range w.Categories {
		if w.Categories[i].CategoryID == id {
			return i
		}
	}
	return -1
}

// ParseConfiguration decodes a persisted configuration document. A document
// that fails to decode degrades to an empty configuration instead of
// erroring; readers must tolerate empty results after a corruption event.
func ParseConfiguration(raw []byte, logger *slog.Logger) WorkflowConfiguration {
	if logger == nil {
		logger = slog.Default()
	}
	if len(raw) == 0 {
		return EmptyConfiguration()
	}
	var cfg WorkflowConfiguration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		logger.Warn("workflow.configuration.invalid", "error", err, "raw_bytes", len(raw))
		return EmptyConfiguration()
	}
	if cfg.Fields == nil {
		cfg.Fields = []FieldDefinition{}
	}
	if cfg.Tables == nil {
		cfg.Tables = []TableDefinition{}
	}
	return cfg
}
