package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/internal/notifier"
	"github.com/martinmuron/prostormat-sub002/pkg/queue"
)

// LogStore is the delivery bookkeeping of broadcasts.
type LogStore interface {
	ListLogs(ctx context.Context, broadcastID uuid.UUID, status string) ([]models.BroadcastLog, error)
	MarkLogSent(ctx context.Context, logID uuid.UUID) error
	MarkLogFailed(ctx context.Context, logID uuid.UUID, reason string) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Notifier sends one venue's notification.
type Notifier interface {
	Notify(ctx context.Context, n notifier.Notification) error
}

// JobQueue is the Redis job queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// DeliveryProcessor notifies every venue of a broadcast and records the
// outcome per venue.
type DeliveryProcessor struct {
	store    LogStore
	notifier Notifier
	queue    JobQueue
	backoff  time.Duration
	poll     time.Duration
	logger   *zap.Logger
}

// NewDeliveryProcessor creates a delivery processor. q may be nil when jobs
// arrive over AMQP instead of Redis.
func NewDeliveryProcessor(store LogStore, n Notifier, q JobQueue, logger *zap.Logger) *DeliveryProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeliveryProcessor{store: store, notifier: n, queue: q, backoff: queue.RetryBackoff, poll: queue.PollTimeout, logger: logger}
}

// Process delivers one broadcast. Logs that are not pending are left alone,
// so a redelivered job never notifies a venue twice. Rejected or
// unaddressable venues are marked failed; any other notifier error leaves
// the log pending and is returned so the job can be retried.
func (p *DeliveryProcessor) Process(ctx context.Context, job models.DeliveryJob) error {
	pending, err := p.store.ListLogs(ctx, job.BroadcastID, models.BroadcastLogStatusPending)
	if err != nil {
		return fmt.Errorf("list pending logs: %w", err)
	}
	venues := make(map[uuid.UUID]models.DeliveryVenue, len(job.Venues))
	for _, v := range job.Venues {
		venues[v.VenueID] = v
	}

	var transient error
	for _, l := range pending {
		v := venues[l.VenueID]
		recipients := recipientsOf(v)
		if len(recipients) == 0 {
			if err := p.store.MarkLogFailed(ctx, l.ID, "no contact address"); err != nil {
				return err
			}
			continue
		}
		err := p.notifier.Notify(ctx, notifier.Notification{
			BroadcastID: job.BroadcastID,
			VenueID:     l.VenueID,
			VenueName:   v.Name,
			Recipients:  recipients,
			Request:     job.Request,
		})
		switch {
		case err == nil:
			if err := p.store.MarkLogSent(ctx, l.ID); err != nil {
				return err
			}
		case errors.Is(err, notifier.ErrRejected):
			p.logger.Warn("venue notification rejected",
				zap.String("broadcast_id", job.BroadcastID.String()),
				zap.String("venue_id", l.VenueID.String()),
				zap.Error(err),
			)
			if err := p.store.MarkLogFailed(ctx, l.ID, err.Error()); err != nil {
				return err
			}
		default:
			transient = err
		}
	}
	if transient != nil {
		return fmt.Errorf("deliver broadcast %s: %w", job.BroadcastID, transient)
	}
	return p.finish(ctx, job.BroadcastID)
}

// GiveUp fails every log still pending and closes the broadcast.
func (p *DeliveryProcessor) GiveUp(ctx context.Context, broadcastID uuid.UUID, reason string) error {
	pending, err := p.store.ListLogs(ctx, broadcastID, models.BroadcastLogStatusPending)
	if err != nil {
		return fmt.Errorf("list pending logs: %w", err)
	}
	for _, l := range pending {
		if err := p.store.MarkLogFailed(ctx, l.ID, reason); err != nil {
			return err
		}
	}
	return p.finish(ctx, broadcastID)
}

// finish sets the broadcast status from its logs: sent when at least one
// venue was reached, failed otherwise.
func (p *DeliveryProcessor) finish(ctx context.Context, broadcastID uuid.UUID) error {
	logs, err := p.store.ListLogs(ctx, broadcastID, "")
	if err != nil {
		return fmt.Errorf("list logs: %w", err)
	}
	status := models.BroadcastStatusFailed
	sent := 0
	for _, l := range logs {
		if l.Status == models.BroadcastLogStatusPending {
			return nil
		}
		if l.Status == models.BroadcastLogStatusSent {
			sent++
		}
	}
	if sent > 0 {
		status = models.BroadcastStatusSent
	}
	if err := p.store.UpdateStatus(ctx, broadcastID, status); err != nil {
		return err
	}
	p.logger.Info("broadcast delivered",
		zap.String("broadcast_id", broadcastID.String()),
		zap.String("status", status),
		zap.Int("sent", sent),
		zap.Int("venues", len(logs)),
	)
	return nil
}

func recipientsOf(v models.DeliveryVenue) []string {
	var out []string
	for _, e := range []string{v.ContactEmail, v.ManagerEmail} {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		dup := false
		for _, o := range out {
			if strings.EqualFold(o, e) {
				dup = true
			}
		}
		if !dup {
			out = append(out, e)
		}
	}
	return out
}

// ProcessJob decodes and processes a queued job. On the last attempt the
// remaining pending logs are failed instead of retried.
func (p *DeliveryProcessor) ProcessJob(ctx context.Context, job *queue.Job) error {
	delivery, err := queue.DecodeDelivery(job)
	if err != nil {
		return err
	}
	err = p.Process(ctx, delivery)
	if err != nil && job.Attempt+1 >= queue.MaxRetries {
		if gErr := p.GiveUp(ctx, delivery.BroadcastID, err.Error()); gErr != nil {
			p.logger.Error("give up delivery failed", zap.String("broadcast_id", delivery.BroadcastID.String()), zap.Error(gErr))
		}
	}
	return err
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *DeliveryProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("delivery worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, p.poll)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.ProcessJob(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *DeliveryProcessor) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.backoff):
	}
}
