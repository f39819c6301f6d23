package workflows

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/MLNativeAI/PaperJet/constants"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/entity"
	"github.com/MLNativeAI/PaperJet/internal/extract"
	"github.com/MLNativeAI/PaperJet/internal/llm"
	"github.com/MLNativeAI/PaperJet/internal/repository"
	"github.com/MLNativeAI/PaperJet/internal/storage"
	"github.com/MLNativeAI/PaperJet/internal/utils"
)

// Service owns the workflow lifecycle: creation from an uploaded document,
// the analysis -> sample-extraction chain, naming, deletion, and the
// configuration edit operations in fields.go.
type Service struct {
	workflowRepo repository.WorkflowRepository
	fileRepo     repository.FileRepository
	store        storage.ObjectStore
	analyzer     llm.DocumentAnalyzer
	invoker      *extract.Invoker
	logger       *slog.Logger
}

func NewService(
	workflowRepo repository.WorkflowRepository,
	fileRepo repository.FileRepository,
	store storage.ObjectStore,
	analyzer llm.DocumentAnalyzer,
	invoker *extract.Invoker,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		workflowRepo: workflowRepo,
		fileRepo:     fileRepo,
		store:        store,
		analyzer:     analyzer,
		invoker:      invoker,
		logger:       logger,
	}
}

// Create stores the seed document and creates a workflow in "analyzing" with
// an empty configuration and an empty sample result.
func (s *Service) Create(ctx context.Context, ownerID, filename string, data []byte) (*entity.Workflow, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, common.InvalidArgumentError("owner id is required")
	}
	if strings.TrimSpace(filename) == "" {
		return nil, common.InvalidArgumentError("filename is required")
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, common.InvalidArgumentErrorf("unsupported file extension %q", ext)
	}

	s.logger.Info("workflow.create.start", "owner_id", ownerID, "filename", filename, "file_size", len(data))

	now := time.Now().UTC()
	fileID := utils.NewID(utils.PrefixFile)
	objectKey := "workflow-samples/" + fileID + "-" + filename

	if err := s.fileRepo.Insert(ctx, &entity.File{
		ID:        fileID,
		Filename:  objectKey,
		OwnerID:   ownerID,
		CreatedAt: now,
	}); err != nil {
		return nil, common.InternalErrorf("save file record: %v", err)
	}
	if err := s.store.Write(ctx, objectKey, data); err != nil {
		return nil, common.InternalErrorf("store document: %v", err)
	}

	sample := entity.EmptyResult()
	w := &entity.Workflow{
		ID:            utils.NewID(utils.PrefixWorkflow),
		Name:          "New Workflow", // renamed after analysis
		Description:   "",
		Categories:    []entity.CategoryDefinition{},
		Configuration: entity.EmptyConfiguration(),
		SampleData:    &sample,
		FileID:        fileID,
		Status:        constants.WorkflowAnalyzing,
		OwnerID:       ownerID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.workflowRepo.Insert(ctx, w); err != nil {
		return nil, common.InternalErrorf("save workflow: %v", err)
	}

	s.logger.Info("workflow.create.ok", "workflow_id", w.ID, "file_id", fileID, "owner_id", ownerID)
	return w, nil
}

// AnalyzeDocument runs document analysis against the seed file, writes the
// proposed configuration with status "extracting", then chains straight into
// sample extraction. A failed analysis leaves the workflow where it was; a
// failed extraction leaves it in "extracting" with the configuration kept.
func (s *Service) AnalyzeDocument(ctx context.Context, workflowID, ownerID string) error {
	s.logger.Info("workflow.analyze.start", "workflow_id", workflowID, "owner_id", ownerID)

	w, err := s.getOwned(ctx, workflowID, ownerID)
	if err != nil {
		return err
	}
	file, err := s.getOwnedFile(ctx, w.FileID, ownerID)
	if err != nil {
		return err
	}
	if !constants.CanTransition(w.Status, constants.WorkflowExtracting) {
		return common.FailedPreconditionError("workflow is not awaiting analysis")
	}

	doc, err := s.presign(file)
	if err != nil {
		return err
	}

	analysis, err := s.analyzer.Analyze(ctx, doc)
	if err != nil {
		// External failure propagates unmodified; retrying is the queue
		// layer's decision.
		return err
	}

	cfg := entity.WorkflowConfiguration{Fields: analysis.Fields, Tables: analysis.Tables}
	if cfg.Fields == nil {
		cfg.Fields = []entity.FieldDefinition{}
	}
	if cfg.Tables == nil {
		cfg.Tables = []entity.TableDefinition{}
	}
	if err := common.ValidateConfiguration(cfg); err != nil {
		return err
	}
	if err := common.ValidateCategoryRefs(cfg, analysis.Categories); err != nil {
		return err
	}

	w.Name = analysis.WorkflowName
	w.Description = analysis.Description
	w.Categories = analysis.Categories
	w.Configuration = cfg
	w.Status = constants.WorkflowExtracting
	w.UpdatedAt = time.Now().UTC()
	if err := s.workflowRepo.Update(ctx, w); err != nil {
		if errors.Is(err, common.ErrStaleWrite) {
			return common.AbortedError("workflow was modified concurrently")
		}
		return common.InternalErrorf("save analysis: %v", err)
	}

	s.logger.Info("workflow.analyze.ok",
		"workflow_id", w.ID,
		"fields", len(cfg.Fields),
		"tables", len(cfg.Tables),
	)

	return s.runSampleExtraction(ctx, w, file)
}

// ExtractSample re-runs sample extraction against the seed document using
// the current configuration. Idempotent: it overwrites sampleData and its
// timestamp without touching the configuration.
func (s *Service) ExtractSample(ctx context.Context, workflowID, ownerID string) error {
	w, err := s.getOwned(ctx, workflowID, ownerID)
	if err != nil {
		return err
	}
	file, err := s.getOwnedFile(ctx, w.FileID, ownerID)
	if err != nil {
		return err
	}
	return s.runSampleExtraction(ctx, w, file)
}

func (s *Service) runSampleExtraction(ctx context.Context, w *entity.Workflow, file *entity.File) error {
	doc, err := s.presign(file)
	if err != nil {
		return err
	}

	contract := llm.Synthesize(w.Configuration)
	raw, err := s.invoker.Extract(ctx, doc, contract)
	if err != nil {
		return err
	}
	result := extract.MapResult(w.Configuration, raw)

	now := time.Now().UTC()
	w.SampleData = &result
	w.SampleDataExtractedAt = &now
	if w.Status == constants.WorkflowExtracting {
		w.Status = constants.WorkflowConfiguring
	}
	w.UpdatedAt = now
	if err := s.workflowRepo.Update(ctx, w); err != nil {
		if errors.Is(err, common.ErrStaleWrite) {
			return common.AbortedError("workflow was modified concurrently")
		}
		return common.InternalErrorf("save sample data: %v", err)
	}

	s.logger.Info("workflow.sample.ok",
		"workflow_id", w.ID,
		"fields", len(result.Fields),
		"tables", len(result.Tables),
	)
	return nil
}

// Get returns a workflow owned by ownerID. Foreign ownership reads as
// absence.
func (s *Service) Get(ctx context.Context, workflowID, ownerID string) (*entity.Workflow, error) {
	return s.getOwned(ctx, workflowID, ownerID)
}

// List returns every workflow owned by ownerID.
func (s *Service) List(ctx context.Context, ownerID string) ([]*entity.Workflow, error) {
	workflows, err := s.workflowRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.InternalErrorf("list workflows: %v", err)
	}
	return workflows, nil
}

// UpdateRequest is a sparse workflow patch. Supplying a non-empty name is
// the user-facing trigger that activates a configured workflow.
type UpdateRequest struct {
	Name          *string
	Configuration *entity.WorkflowConfiguration
}

// Update applies a sparse patch to the workflow document. Configuration
// edits never change status; a non-empty name transitions to "active". Runs
// under the same optimistic read-merge-write cycle as field edits.
func (s *Service) Update(ctx context.Context, workflowID, ownerID string, req UpdateRequest) (*entity.Workflow, error) {
	return s.applyConfigPatch(ctx, workflowID, ownerID, func(w *entity.Workflow) error {
		if req.Configuration != nil {
			w.Configuration = *req.Configuration
		}
		if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
			if !constants.CanTransition(w.Status, constants.WorkflowActive) {
				return common.FailedPreconditionError("workflow cannot be activated from status " + string(w.Status))
			}
			w.Name = *req.Name
			w.Status = constants.WorkflowActive
		}
		return nil
	})
}

// Delete removes a workflow together with its seed file record.
func (s *Service) Delete(ctx context.Context, workflowID, ownerID string) error {
	w, err := s.getOwned(ctx, workflowID, ownerID)
	if err != nil {
		return err
	}
	if err := s.fileRepo.Delete(ctx, w.FileID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return common.InternalErrorf("delete workflow file: %v", err)
	}
	if err := s.workflowRepo.Delete(ctx, w.ID); err != nil {
		return common.InternalErrorf("delete workflow: %v", err)
	}
	s.logger.Info("workflow.delete.ok", "workflow_id", w.ID, "owner_id", ownerID)
	return nil
}

// getOwned re-fetches the workflow and verifies ownership. Absence and
// foreign ownership are indistinguishable to the caller.
func (s *Service) getOwned(ctx context.Context, workflowID, ownerID string) (*entity.Workflow, error) {
	w, err := s.workflowRepo.GetByID(ctx, workflowID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("workflow not found")
	}
	if err != nil {
		return nil, common.InternalErrorf("get workflow: %v", err)
	}
	if w.OwnerID != ownerID {
		return nil, common.NotFoundError("workflow not found")
	}
	return w, nil
}

func (s *Service) getOwnedFile(ctx context.Context, fileID, ownerID string) (*entity.File, error) {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("file not found")
	}
	if err != nil {
		return nil, common.InternalErrorf("get file: %v", err)
	}
	if file.OwnerID != ownerID {
		return nil, common.NotFoundError("file not found")
	}
	return file, nil
}

func (s *Service) presign(file *entity.File) (llm.Document, error) {
	url, err := s.store.Presign(file.Filename)
	if err != nil {
		return llm.Document{}, common.InternalErrorf("presign document: %v", err)
	}
	return llm.Document{URL: url, MimeType: constants.MimeTypeForFilename(file.Filename)}, nil
}
