package api

import (
	"context"

	"github.com/stillpoint/drip/internal/sequence"
	"github.com/stillpoint/drip/internal/service/enrollment"
	"github.com/stillpoint/drip/internal/service/sequencedef"
	"github.com/stillpoint/drip/internal/service/subscriber"
)

// ProcessRunner triggers one processor batch. Satisfied by
// sequence.Engine; the scheduler endpoint and the internal ticker share
// the same run lock through it.
type ProcessRunner interface {
	RunOnce(ctx context.Context) (*sequence.BatchSummary, error)
}

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	subscribers   *subscriber.Service
	enrollments   *enrollment.Service
	sequences     *sequencedef.Service
	runner        ProcessRunner
	processSecret string
	health        *HealthChecker
}

// NewHandlers wires the handler set.
func NewHandlers(
	subscribers *subscriber.Service,
	enrollments *enrollment.Service,
	sequences *sequencedef.Service,
	runner ProcessRunner,
	processSecret string,
	health *HealthChecker,
) *Handlers {
	return &Handlers{
		subscribers:   subscribers,
		enrollments:   enrollments,
		sequences:     sequences,
		runner:        runner,
		processSecret: processSecret,
		health:        health,
	}
}
