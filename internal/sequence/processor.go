// Package sequence implements the periodic batch processor that sends due
// sequence steps and advances enrollments.
package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/stillpoint/drip/internal/config"
	"github.com/stillpoint/drip/internal/domain"
	"github.com/stillpoint/drip/internal/pkg/logger"
	"github.com/stillpoint/drip/internal/template"
	"github.com/stillpoint/drip/internal/worker"
)

// BatchSummary reports one processor invocation to the scheduler.
type BatchSummary struct {
	Processed int          `json:"processed"`
	Sent      int          `json:"sent"`
	Failed    int          `json:"failed"`
	Completed int          `json:"completed"`
	Details   []ItemResult `json:"details"`
}

// ItemResult is the per-enrollment detail inside a BatchSummary.
type ItemResult struct {
	EnrollmentID string `json:"enrollment_id"`
	Step         int    `json:"step"`
	Status       string `json:"status"` // sent, failed, completed, cancelled, errored, already_sent
	Error        string `json:"error,omitempty"`
}

// Processor runs one batch over all due enrollments. It holds no state of
// its own; everything lives in the store, so it is safe to construct one
// per invocation or share one across runs.
type Processor struct {
	store     Store
	sender    worker.Sender
	templates *template.Service
	delivery  config.DeliveryConfig
	batchSize int
	claimTTL  time.Duration
	now       func() time.Time
}

// NewProcessor wires a processor from its collaborators.
func NewProcessor(store Store, sender worker.Sender, templates *template.Service, delivery config.DeliveryConfig, engineCfg config.EngineConfig) *Processor {
	return &Processor{
		store:     store,
		sender:    sender,
		templates: templates,
		delivery:  delivery,
		batchSize: engineCfg.BatchSize,
		claimTTL:  engineCfg.ClaimTTL(),
		now:       time.Now,
	}
}

// SetClock overrides the time source. Used by tests.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// ProcessDue claims and processes every enrollment whose due time has
// passed. Per-enrollment failures are recorded and isolated; only a
// failure of the due-query itself aborts the batch.
func (p *Processor) ProcessDue(ctx context.Context) (*BatchSummary, error) {
	now := p.now()

	if n, err := p.store.ReapExpiredClaims(ctx, now.Add(-p.claimTTL)); err != nil {
		logger.Warn("processor: reap expired claims failed", "error", err)
	} else if n > 0 {
		logger.Warn("processor: reaped expired claims", "count", n)
	}

	claimed, err := p.store.ClaimDue(ctx, now, p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("claim due enrollments: %w", err)
	}

	summary := &BatchSummary{Details: []ItemResult{}}
	for i := range claimed {
		if ctx.Err() != nil {
			// Shutting down mid-batch: release what we still hold.
			p.release(claimed[i].ID)
			continue
		}
		item := p.processOne(ctx, &claimed[i])
		summary.Processed++
		switch item.Status {
		case "sent":
			summary.Sent++
		case "failed":
			summary.Failed++
		case "completed":
			summary.Completed++
		}
		summary.Details = append(summary.Details, item)
	}

	logger.Info("processor: batch complete",
		"processed", summary.Processed, "sent", summary.Sent,
		"failed", summary.Failed, "completed", summary.Completed)
	return summary, nil
}

// processOne drives a single claimed enrollment through the state machine.
// It always resolves the claim before returning.
func (p *Processor) processOne(ctx context.Context, e *domain.Enrollment) ItemResult {
	item := ItemResult{EnrollmentID: e.ID, Step: e.CurrentStep}

	sub, err := p.store.GetSubscriber(ctx, e.SubscriberID)
	if err != nil {
		logger.Error("processor: subscriber lookup failed", "enrollment_id", e.ID, "error", err)
		p.markErrored(e.ID)
		item.Status = "errored"
		item.Error = "subscriber not found"
		return item
	}
	if sub.Status == domain.SubscriberUnsubscribed {
		if err := p.store.MarkCancelled(ctx, e.ID); err != nil {
			logger.Error("processor: cancel failed", "enrollment_id", e.ID, "error", err)
			p.release(e.ID)
		}
		item.Status = "cancelled"
		return item
	}

	seq, err := p.store.GetSequence(ctx, e.SequenceID)
	if err != nil {
		logger.Error("processor: sequence lookup failed", "enrollment_id", e.ID, "error", err)
		p.markErrored(e.ID)
		item.Status = "errored"
		item.Error = "sequence not found"
		return item
	}

	step := seq.StepAt(e.CurrentStep)
	if step == nil {
		// Past the end is the normal terminal transition. A hole in the
		// middle of the sequence is a data inconsistency.
		if e.CurrentStep > seq.LastPosition() {
			if err := p.store.Complete(ctx, e.ID); err != nil {
				logger.Error("processor: complete failed", "enrollment_id", e.ID, "error", err)
				p.release(e.ID)
				item.Status = "failed"
				item.Error = err.Error()
				return item
			}
			item.Status = "completed"
			return item
		}
		logger.Error("processor: missing step", "enrollment_id", e.ID, "step", e.CurrentStep)
		p.markErrored(e.ID)
		item.Status = "errored"
		item.Error = fmt.Sprintf("step %d not found in sequence %s", e.CurrentStep, seq.ID)
		return item
	}

	renderCtx := template.SubscriberContext(sub, p.delivery.UnsubBaseURL)
	msg := &worker.EmailMessage{
		EnrollmentID: e.ID,
		SubscriberID: sub.ID,
		Email:        sub.Email,
		FromName:     p.delivery.FromName,
		FromEmail:    p.delivery.FromEmail,
		ReplyTo:      p.delivery.ReplyTo,
		Subject:      p.templates.Render(step.ID+":subject", step.Subject, renderCtx),
		HTMLContent:  p.templates.Render(step.ID+":body", step.BodyHTML, renderCtx),
	}
	if unsub, ok := renderCtx["unsubscribe_url"].(string); ok {
		msg.Headers = map[string]string{"List-Unsubscribe": "<" + unsub + ">"}
	}

	result, err := p.sender.Send(ctx, msg)
	if err != nil {
		// Adapter misconfiguration, not a provider rejection. Treated the
		// same way at the enrollment level: log failure, retry next run.
		result = &worker.SendResult{Success: false, Error: err}
	}

	if !result.Success {
		errMsg := "delivery failed"
		if result.Error != nil {
			errMsg = result.Error.Error()
		}
		if err := p.store.RecordFailed(ctx, e.ID, e.CurrentStep, errMsg); err != nil {
			logger.Error("processor: record failed-entry failed", "enrollment_id", e.ID, "error", err)
		}
		p.release(e.ID)
		item.Status = "failed"
		item.Error = errMsg
		return item
	}

	recorded, err := p.store.RecordSent(ctx, e.ID, e.CurrentStep, result.MessageID)
	if err != nil {
		// The email went out but the log write failed. Release without
		// advancing; the unique sent-index turns the next run's re-record
		// into a duplicate no-op instead of a double send.
		logger.Error("processor: record sent-entry failed", "enrollment_id", e.ID, "error", err)
		p.release(e.ID)
		item.Status = "failed"
		item.Error = err.Error()
		return item
	}
	if !recorded {
		// A concurrent run already delivered this step. Advance without
		// counting another send.
		logger.Warn("processor: step already sent, advancing", "enrollment_id", e.ID, "step", e.CurrentStep)
		item.Status = "already_sent"
		p.advance(ctx, e, seq, &item)
		return item
	}

	item.Status = "sent"
	p.advance(ctx, e, seq, &item)
	return item
}

// advance moves the enrollment past its current step: either schedules
// the next step or completes the enrollment.
func (p *Processor) advance(ctx context.Context, e *domain.Enrollment, seq *domain.Sequence, item *ItemResult) {
	next := e.CurrentStep + 1
	nextStep := seq.StepAt(next)
	if nextStep == nil {
		if err := p.store.Complete(ctx, e.ID); err != nil {
			logger.Error("processor: complete failed", "enrollment_id", e.ID, "error", err)
			p.release(e.ID)
		}
		return
	}

	dueAt := p.now().Add(time.Duration(nextStep.DelayDays) * 24 * time.Hour)
	if err := p.store.Advance(ctx, e.ID, next, dueAt); err != nil {
		logger.Error("processor: advance failed", "enrollment_id", e.ID, "error", err)
		p.release(e.ID)
	}
}

func (p *Processor) markErrored(enrollmentID string) {
	if err := p.store.MarkErrored(context.Background(), enrollmentID); err != nil {
		logger.Error("processor: mark errored failed", "enrollment_id", enrollmentID, "error", err)
	}
}

func (p *Processor) release(enrollmentID string) {
	if err := p.store.ReleaseClaim(context.Background(), enrollmentID); err != nil {
		logger.Error("processor: release claim failed", "enrollment_id", enrollmentID, "error", err)
	}
}
