package scheduler

import (
	"context"
	"fmt"

	"field_inventory_backend/platform/config"
	"field_inventory_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ImportProcessor runs a queued import submission.
type ImportProcessor interface {
	ProcessQueuedImport(ctx context.Context, sessionID, lockToken string) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	imports ImportProcessor
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, imports ImportProcessor, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 4
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		imports: imports,
		log:     log,
	}

	mux.HandleFunc(TaskImportSubmit, w.handleImportSubmit)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleImportSubmit(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseImportSubmitPayload(task)
	if err != nil {
		return fmt.Errorf("decode import submit payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := w.imports.ProcessQueuedImport(ctx, payload.SessionID, payload.LockToken); err != nil {
		w.log.Error("queued import failed", "sessionId", payload.SessionID, "error", err)
		return fmt.Errorf("import %s: %v: %w", payload.SessionID, err, asynq.SkipRetry)
	}
	return nil
}
