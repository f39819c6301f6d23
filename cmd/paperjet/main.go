package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/MLNativeAI/PaperJet/internal/async"
	"github.com/MLNativeAI/PaperJet/internal/common"
	"github.com/MLNativeAI/PaperJet/internal/executions"
	"github.com/MLNativeAI/PaperJet/internal/export"
	"github.com/MLNativeAI/PaperJet/internal/extract"
	"github.com/MLNativeAI/PaperJet/internal/llm/gemini"
	"github.com/MLNativeAI/PaperJet/internal/repository"
	"github.com/MLNativeAI/PaperJet/internal/storage"
	"github.com/MLNativeAI/PaperJet/internal/workflows"
)

const usage = `usage: paperjet <command> [flags]

commands:
  create    upload a sample document and create a workflow
  analyze   run document analysis + sample extraction on a workflow
  update    rename (and activate) a workflow
  list      list workflows for an owner
  execute   run a document through an active workflow
  export    export a completed execution as XLSX
`

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app, err := buildApp(ctx, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	if err := app.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		logger.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg        *common.Config
	db         *repository.DB
	queue      *async.ExecutionQueue
	workflows  *workflows.Service
	executions *executions.Service
	export     *export.Service
	logger     *slog.Logger
}

func buildApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  *repository.DB
		err error
	)
	if cfg.Database.DSN != "" {
		db, err = repository.OpenPostgres(ctx, repository.Config{
			DSN:              cfg.Database.DSN,
			MaxConns:         cfg.Database.MaxConns,
			MinConns:         cfg.Database.MinConns,
			MaxConnLifetime:  cfg.Database.MaxConnLifetime,
			MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
			DialTimeout:      cfg.Database.DialTimeout,
			StatementTimeout: cfg.Database.StatementTimeout,
		}, logger)
	} else {
		db, err = repository.OpenSQLite(cfg.Database.SQLitePath, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := db.HealthCheck(ctx, 3*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	workflowRepo := repository.NewWorkflowRepository(db, logger)
	executionRepo := repository.NewExecutionRepository(db, logger)
	fileRepo := repository.NewFileRepository(db, logger)
	store := storage.NewFSStore(cfg.Storage.BaseDir, cfg.Storage.BaseURL, logger)

	client := gemini.NewClient(gemini.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	}, logger)
	invoker := extract.NewInvoker(client, extract.NewOtelSink(), logger)

	workflowSvc := workflows.NewService(workflowRepo, fileRepo, store, client, invoker, logger)
	executionSvc := executions.NewService(executionRepo, workflowRepo, fileRepo, store, invoker, nil, logger)
	queue := async.NewExecutionQueue(executionSvc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)
	executionSvc.SetDispatcher(queue)
	exportSvc := export.NewService(executionRepo, workflowRepo, logger)

	return &app{
		cfg:        cfg,
		db:         db,
		queue:      queue,
		workflows:  workflowSvc,
		executions: executionSvc,
		export:     exportSvc,
		logger:     logger,
	}, nil
}

func (a *app) close() {
	drain, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	a.queue.Shutdown(drain)
	a.db.Close()
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "create":
		return a.create(ctx, args)
	case "analyze":
		return a.analyze(ctx, args)
	case "update":
		return a.update(ctx, args)
	case "list":
		return a.list(ctx, args)
	case "execute":
		return a.execute(ctx, args)
	case "export":
		return a.exportXLSX(ctx, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) create(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	file := fs.String("file", "", "path to the sample document")
	_ = fs.Parse(args)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	w, err := a.workflows.Create(ctx, *owner, filepath.Base(*file), data)
	if err != nil {
		return err
	}
	fmt.Printf("created workflow %s (status %s)\n", w.ID, w.Status)
	return nil
}

func (a *app) analyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	id := fs.String("id", "", "workflow id")
	_ = fs.Parse(args)

	if err := a.workflows.AnalyzeDocument(ctx, *id, *owner); err != nil {
		return err
	}
	w, err := a.workflows.Get(ctx, *id, *owner)
	if err != nil {
		return err
	}
	fmt.Printf("analyzed workflow %s: %q, %d fields, %d tables (status %s)\n",
		w.ID, w.Name, len(w.Configuration.Fields), len(w.Configuration.Tables), w.Status)
	return nil
}

func (a *app) update(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("update", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	id := fs.String("id", "", "workflow id")
	name := fs.String("name", "", "workflow name; non-empty activates the workflow")
	_ = fs.Parse(args)

	req := workflows.UpdateRequest{}
	if *name != "" {
		req.Name = name
	}
	w, err := a.workflows.Update(ctx, *id, *owner, req)
	if err != nil {
		return err
	}
	fmt.Printf("updated workflow %s (status %s)\n", w.ID, w.Status)
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	_ = fs.Parse(args)

	ws, err := a.workflows.List(ctx, *owner)
	if err != nil {
		return err
	}
	for _, w := range ws {
		fmt.Printf("%s  %-12s  %s\n", w.ID, w.Status, w.Name)
	}
	return nil
}

func (a *app) execute(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("execute", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	id := fs.String("id", "", "workflow id")
	file := fs.String("file", "", "path to the document to process")
	_ = fs.Parse(args)

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	e, err := a.executions.Execute(ctx, *id, *owner, filepath.Base(*file), data)
	if err != nil {
		return err
	}
	fmt.Printf("queued execution %s\n", e.ID)

	// One-shot CLI: drain the queue so the result is terminal before exit.
	drain, cancel := context.WithTimeout(ctx, a.cfg.Queue.ProcessTimeout+10*time.Second)
	defer cancel()
	a.queue.Shutdown(drain)

	done, err := a.executions.Get(ctx, e.ID, *owner)
	if err != nil {
		return err
	}
	if done.ErrorMessage != nil {
		fmt.Printf("execution %s: %s (%s)\n", done.ID, done.Status, *done.ErrorMessage)
	} else {
		fmt.Printf("execution %s: %s\n", done.ID, done.Status)
	}
	return nil
}

func (a *app) exportXLSX(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	owner := fs.String("owner", "", "owner id")
	id := fs.String("id", "", "execution id")
	out := fs.String("out", "export.xlsx", "output path")
	_ = fs.Parse(args)

	data, err := a.export.ExportExecutionXLSX(ctx, *id, *owner)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", *out, len(data))
	return nil
}
