package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"proposepress/internal/models"
)

// DueLister finds scheduled content whose date has passed.
// *store.ContentStore satisfies it.
type DueLister interface {
	ListDue(now time.Time) ([]models.Content, error)
}

// Publisher publishes "future" content once its date arrives. Each due
// item is saved through the pipeline as "publish", so the save filters
// and after-save actions see the transition.
type Publisher struct {
	pipeline *Pipeline
	due      DueLister
	schedule string

	mu sync.Mutex
	c  *cron.Cron
}

// NewPublisher creates a publisher that checks for due content on the
// given cron schedule ("@every 1m", "*/5 * * * *").
func NewPublisher(pipeline *Pipeline, due DueLister, schedule string) *Publisher {
	return &Publisher{pipeline: pipeline, due: due, schedule: schedule}
}

// Start begins the cron loop. It stops when ctx is cancelled or Stop is
// called.
func (p *Publisher) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.c != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(p.pipeline.zone.Location()))
	if _, err := c.AddFunc(p.schedule, func() {
		if _, err := p.PublishDue(ctx); err != nil {
			slog.Error("publish due content", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule publisher %q: %w", p.schedule, err)
	}
	c.Start()
	p.c = c
	slog.Info("publisher started", "schedule", p.schedule, "tz", p.pipeline.zone.Location().String())

	go func() {
		<-ctx.Done()
		p.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for a running check to finish.
func (p *Publisher) Stop() {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
		slog.Info("publisher stopped")
	}
}

// PublishDue publishes every due item and returns how many were saved.
// A failing item is logged and the rest still run.
func (p *Publisher) PublishDue(ctx context.Context) (int, error) {
	items, err := p.due.ListDue(p.pipeline.zone.Now())
	if err != nil {
		return 0, fmt.Errorf("publish due: %w", err)
	}

	published := 0
	for i := range items {
		item := items[i]
		item.Status = models.ContentStatusPublish
		if _, err := p.pipeline.Save(ctx, &item); err != nil {
			slog.Error("publish scheduled content", "id", item.ID, "error", err)
			continue
		}
		published++
	}
	if published > 0 {
		slog.Info("published scheduled content", "count", published)
	}
	return published, nil
}
