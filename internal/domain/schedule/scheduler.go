package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/junctionhq/junction/gateway/internal/domain/catalog"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/logging"
	"github.com/junctionhq/junction/gateway/internal/infrastructure/monitoring"
	"github.com/junctionhq/junction/gateway/internal/shared/id"
)

// Trigger fires one workflow. Satisfied by the workflow upstream
// handler, so scheduled runs share the client-path timeout and
// no-retry semantics.
type Trigger interface {
	Trigger(ctx context.Context, workflow string, payload json.RawMessage) (json.RawMessage, error)
}

// Scheduler fires catalog schedule entries on their cron expressions.
type Scheduler struct {
	cron    *cron.Cron
	trigger Trigger
	logger  *logging.Logger
	metrics *monitoring.Metrics
	entries int
}

// New builds a scheduler from the catalog's schedule entries. The
// catalog validated every cron expression at load, so registration
// failures here are wiring bugs.
func New(cat *catalog.Catalog, trigger Trigger, logger *logging.Logger, metrics *monitoring.Metrics) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		logger:  logger,
		metrics: metrics,
	}

	for _, entry := range cat.Schedules() {
		workflow := entry.Workflow

		var payload json.RawMessage
		if len(entry.Payload) > 0 {
			data, err := sonic.Marshal(entry.Payload)
			if err != nil {
				return nil, fmt.Errorf("schedule %q: encoding payload: %w", workflow, err)
			}
			payload = data
		}

		if _, err := s.cron.AddFunc(entry.Cron, func() {
			s.runJob(workflow, payload)
		}); err != nil {
			return nil, fmt.Errorf("schedule %q: %w", workflow, err)
		}
		s.entries++
	}

	return s, nil
}

// Entries returns the number of registered schedules.
func (s *Scheduler) Entries() int {
	return s.entries
}

// Start begins firing schedules. A scheduler with no entries stays
// idle.
func (s *Scheduler) Start() {
	if s.entries == 0 {
		return
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("entries", s.entries))
}

// Stop halts the cron runner and waits for in-flight runs to finish.
// Runs are bounded by the upstream call timeout, so this cannot hang
// indefinitely.
func (s *Scheduler) Stop() {
	if s.entries == 0 {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// runJob fires one scheduled workflow trigger and records the outcome.
func (s *Scheduler) runJob(workflow string, payload json.RawMessage) {
	runID := id.NewRequestID()
	start := time.Now()

	s.logger.Debug("firing scheduled workflow",
		zap.String("workflow", workflow),
		zap.String("run_id", runID.String()),
	)

	// Detached from the cron runner's lifecycle; the trigger bounds
	// the call itself.
	_, err := s.trigger.Trigger(context.Background(), workflow, payload)
	if err != nil {
		s.metrics.RecordScheduledRun(workflow, "error")
		s.logger.Error("scheduled workflow failed",
			zap.String("workflow", workflow),
			zap.String("run_id", runID.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return
	}

	s.metrics.RecordScheduledRun(workflow, "success")
	s.logger.Info("scheduled workflow fired",
		zap.String("workflow", workflow),
		zap.String("run_id", runID.String()),
		zap.Duration("elapsed", time.Since(start)),
	)
}
