package entity

import (
	"time"

	"github.com/MLNativeAI/PaperJet/constants"
)

// Execution represents one extraction run of a workflow against an uploaded
// document. Immutable once completed or failed, except for deletion.
type Execution struct {
	ID               string                    `json:"id"`
	WorkflowID       string                    `json:"workflowId"`
	WorkflowName     string                    `json:"workflowName"`
	Filename         string                    `json:"filename"`
	FileID           string                    `json:"fileId"`
	Status           constants.ExecutionStatus `json:"status"`
	StartedAt        time.Time                 `json:"startedAt"`
	CompletedAt      *time.Time                `json:"completedAt,omitempty"`
	ErrorMessage     *string                   `json:"errorMessage,omitempty"`
	ExtractionResult *ExtractionResult         `json:"extractionResult,omitempty"`
	OwnerID          string                    `json:"ownerId"`
}
