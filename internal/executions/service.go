package executions

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

// Dispatcher hands an execution id to the background queue. Nil dispatchers
// are tolerated so callers can process synchronously (tests, one-shot CLI).
type Dispatcher interface {
	Dispatch(ctx context.Context, executionID string) error
}

// Service runs documents through active workflows. Execute records a pending
// execution and hands it off; ProcessExecution does the actual model call and
// always parks the row in a terminal status.
type Service struct {
	executionRepo repository.ExecutionRepository
	workflowRepo  repository.WorkflowRepository
	fileRepo      repository.FileRepository
	store         storage.ObjectStore
	invoker       *extract.Invoker
	dispatcher    Dispatcher
	logger        *slog.Logger
}

func NewService(
	executionRepo repository.ExecutionRepository,
	workflowRepo repository.WorkflowRepository,
	fileRepo repository.FileRepository,
	store storage.ObjectStore,
	invoker *extract.Invoker,
	dispatcher Dispatcher,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		executionRepo: executionRepo,
		workflowRepo:  workflowRepo,
		fileRepo:      fileRepo,
		store:         store,
		invoker:       invoker,
		dispatcher:    dispatcher,
		logger:        logger,
	}
}

// SetDispatcher wires the background queue after construction; the queue
// itself needs this service as its processor.
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Execute stores the uploaded document, records a pending execution against
// an active workflow, and dispatches it for processing. The returned
// execution is the pending row; results arrive asynchronously.
func (s *Service) Execute(ctx context.Context, workflowID, ownerID, filename string, data []byte) (*entity.Execution, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, common.InvalidArgumentError("filename is required")
	}
	ext := constants.NormalizeExt(filepath.Ext(filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		return nil, common.InvalidArgumentErrorf("unsupported file extension %q", ext)
	}

	w, err := s.getOwnedWorkflow(ctx, workflowID, ownerID)
	if err != nil {
		return nil, err
	}
	if w.Status != constants.WorkflowActive {
		return nil, common.FailedPreconditionError("workflow is not active")
	}

	now := time.Now().UTC()
	fileID := utils.NewID(utils.PrefixFile)
	objectKey := "executions/" + fileID + "-" + filename

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

	e := &entity.Execution{
		ID:           utils.NewID(utils.PrefixExecution),
		WorkflowID:   w.ID,
		WorkflowName: w.Name,
		Filename:     filename,
		FileID:       fileID,
		Status:       constants.ExecutionPending,
		StartedAt:    now,
		OwnerID:      ownerID,
	}
	if err := s.executionRepo.Insert(ctx, e); err != nil {
		return nil, common.InternalErrorf("save execution: %v", err)
	}

	s.logger.Info("execution.create.ok", "execution_id", e.ID, "workflow_id", w.ID, "filename", filename)

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, e.ID); err != nil {
			s.logger.Error("execution.dispatch_failed", "execution_id", e.ID, "error", err)
		}
	}
	return e, nil
}

// ProcessExecution takes a pending execution through the model call to a
// terminal status. Extraction failures are recorded on the row, not returned,
// so the queue never retries a failed document. Terminal rows are skipped.
func (s *Service) ProcessExecution(ctx context.Context, executionID string) error {
	e, err := s.executionRepo.GetByID(ctx, executionID)
	if errors.Is(err, common.ErrNotFound) {
		return common.NotFoundError("execution not found")
	}
	if err != nil {
		return common.InternalErrorf("get execution: %v", err)
	}
	if constants.IsTerminalExecution(e.Status) {
		s.logger.Info("execution.process.skip", "execution_id", e.ID, "status", e.Status)
		return nil
	}
	if !constants.CanTransitionExecution(e.Status, constants.ExecutionProcessing) {
		return common.FailedPreconditionError("execution is not pending")
	}

	e.Status = constants.ExecutionProcessing
	if err := s.executionRepo.Update(ctx, e); err != nil {
		return common.InternalErrorf("mark execution processing: %v", err)
	}
	s.logger.Info("execution.process.start", "execution_id", e.ID, "workflow_id", e.WorkflowID)

	// The configuration is re-read at processing time so executions always
	// run against the workflow as it stands, not as it was when enqueued.
	w, err := s.workflowRepo.GetByID(ctx, e.WorkflowID)
	if err != nil {
		return s.fail(ctx, e, "workflow unavailable: "+err.Error())
	}
	file, err := s.fileRepo.GetByID(ctx, e.FileID)
	if err != nil {
		return s.fail(ctx, e, "document unavailable: "+err.Error())
	}
	url, err := s.store.Presign(file.Filename)
	if err != nil {
		return s.fail(ctx, e, "presign document: "+err.Error())
	}
	doc := llm.Document{URL: url, MimeType: constants.MimeTypeForFilename(file.Filename)}

	contract := llm.Synthesize(w.Configuration)
	raw, err := s.invoker.Extract(ctx, doc, contract)
	if err != nil {
		return s.fail(ctx, e, err.Error())
	}
	result := extract.MapResult(w.Configuration, raw)

	now := time.Now().UTC()
	e.Status = constants.ExecutionCompleted
	e.CompletedAt = &now
	e.ExtractionResult = &result
	if err := s.executionRepo.Update(ctx, e); err != nil {
		return common.InternalErrorf("save execution result: %v", err)
	}

	s.logger.Info("execution.process.ok",
		"execution_id", e.ID,
		"workflow_id", e.WorkflowID,
		"fields", len(result.Fields),
		"tables", len(result.Tables),
	)
	return nil
}

// fail parks the execution in "failed" with the message. The processing error
// is absorbed here; only a persistence failure surfaces to the caller.
func (s *Service) fail(ctx context.Context, e *entity.Execution, msg string) error {
	now := time.Now().UTC()
	e.Status = constants.ExecutionFailed
	e.CompletedAt = &now
	e.ErrorMessage = &msg
	if err := s.executionRepo.Update(ctx, e); err != nil {
		return common.InternalErrorf("mark execution failed: %v", err)
	}
	s.logger.Warn("execution.process.failed", "execution_id", e.ID, "error", msg)
	return nil
}

// Get returns an execution owned by ownerID. Foreign ownership reads as
// absence.
func (s *Service) Get(ctx context.Context, executionID, ownerID string) (*entity.Execution, error) {
	e, err := s.executionRepo.GetByID(ctx, executionID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.NotFoundError("execution not found")
	}
	if err != nil {
		return nil, common.InternalErrorf("get execution: %v", err)
	}
	if e.OwnerID != ownerID {
		return nil, common.NotFoundError("execution not found")
	}
	return e, nil
}

// ListForWorkflow returns the executions of one owned workflow, newest first.
func (s *Service) ListForWorkflow(ctx context.Context, workflowID, ownerID string) ([]*entity.Execution, error) {
	if _, err := s.getOwnedWorkflow(ctx, workflowID, ownerID); err != nil {
		return nil, err
	}
	executions, err := s.executionRepo.ListByWorkflow(ctx, workflowID)
	if err != nil {
		return nil, common.InternalErrorf("list executions: %v", err)
	}
	return executions, nil
}

// ListAll returns every execution owned by ownerID, newest first.
func (s *Service) ListAll(ctx context.Context, ownerID string) ([]*entity.Execution, error) {
	executions, err := s.executionRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, common.InternalErrorf("list executions: %v", err)
	}
	return executions, nil
}

// Delete removes an execution together with its document record.
func (s *Service) Delete(ctx context.Context, executionID, ownerID string) error {
	e, err := s.Get(ctx, executionID, ownerID)
	if err != nil {
		return err
	}
	if err := s.fileRepo.Delete(ctx, e.FileID); err != nil && !errors.Is(err, common.ErrNotFound) {
		return common.InternalErrorf("delete execution file: %v", err)
	}
	if err := s.executionRepo.Delete(ctx, e.ID); err != nil {
		return common.InternalErrorf("delete execution: %v", err)
	}
	s.logger.Info("execution.delete.ok", "execution_id", e.ID, "owner_id", ownerID)
	return nil
}

func (s *Service) getOwnedWorkflow(ctx context.Context, workflowID, ownerID string) (*entity.Workflow, error) {
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
