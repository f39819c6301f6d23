package llm

import (
	"context"

	"github.com/MLNativeAI/PaperJet/internal/entity"
)

// Document is a reference to an uploaded document, addressable by the model.
type Document struct {
	URL      string
	MimeType string
}

// AnalysisResult is what document analysis proposes for a fresh workflow.
type AnalysisResult struct {
	WorkflowName string
	Description  string
	Categories   []entity.CategoryDefinition
	Fields       []entity.FieldDefinition
	Tables       []entity.TableDefinition
}

// DocumentExtractor performs one structured-extraction call. The returned
// object conforms to the contract's schema; anything else is an error.
type DocumentExtractor interface {
	Extract(ctx context.Context, doc Document, contract *Contract) (map[string]any, error)
	ModelName() string
}

// DocumentAnalyzer discovers the structure of an unseen document.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, doc Document) (*AnalysisResult, error)
}
