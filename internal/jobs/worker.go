package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"facturio/pkg/logger"
)

// Schedule holds the cron expressions for the periodic sweeps.
type Schedule struct {
	QuoteExpiry    string
	InvoiceOverdue string
	EInvoiceSync   string
}

// DefaultSchedule runs the document sweeps nightly and the e-invoice
// reconciliation every fifteen minutes.
func DefaultSchedule() Schedule {
	return Schedule{
		QuoteExpiry:    "0 2 * * *",
		InvoiceOverdue: "15 2 * * *",
		EInvoiceSync:   "*/15 * * * *",
	}
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisOpts asynq.RedisClientOpt
	Handlers  Handlers
	Schedule  Schedule
	Logger    *logger.Logger
}

// Worker wraps the asynq server and the cron scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       *logger.Logger
}

// NewWorker constructs a Worker instance.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			QueueDefault: 1,
		},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskQuoteExpiry, cfg.Handlers.HandleQuoteExpiry)
	mux.HandleFunc(TaskInvoiceOverdue, cfg.Handlers.HandleInvoiceOverdue)
	mux.HandleFunc(TaskEInvoiceSync, cfg.Handlers.HandleEInvoiceSync)

	scheduler := asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{cfg.Schedule.QuoteExpiry, NewQuoteExpiryTask()},
		{cfg.Schedule.InvoiceOverdue, NewInvoiceOverdueTask()},
		{cfg.Schedule.EInvoiceSync, NewEInvoiceSyncTask()},
	}
	for _, entry := range entries {
		if entry.spec == "" {
			continue
		}
		if _, err := scheduler.Register(entry.spec, entry.task, asynq.Queue(QueueDefault)); err != nil {
			return nil, err
		}
	}

	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: cfg.Logger}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.scheduler.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()

	select {
	case <-ctx.Done():
		w.scheduler.Shutdown()
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		w.scheduler.Shutdown()
		return err
	}
}
