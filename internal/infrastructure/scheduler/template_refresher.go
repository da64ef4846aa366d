package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TemplateSource reloads template definitions from their stores
type TemplateSource interface {
	Refresh(ctx context.Context) error
}

// TemplateRefresher periodically reloads the template registry so
// administrative changes take effect without a restart. A failed refresh
// keeps the previously loaded templates.
type TemplateRefresher struct {
	source    TemplateSource
	interval  time.Duration
	logger    *zap.Logger
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewTemplateRefresher creates a refresher. A non-positive interval
// disables it.
func NewTemplateRefresher(source TemplateSource, interval time.Duration, logger *zap.Logger) *TemplateRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateRefresher{
		source:   source,
		interval: interval,
		logger:   logger.Named("template_refresher"),
	}
}

// Start starts the refresh loop
func (r *TemplateRefresher) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return nil
	}
	if r.interval <= 0 {
		r.mu.Unlock()
		r.logger.Info("Template refresher is disabled")
		return nil
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := r.source.Refresh(ctx); err != nil {
					r.logger.Error("Template refresh failed", zap.Error(err))
				}
			}
		}
	}()

	r.logger.Info("Template refresher started", zap.Duration("interval", r.interval))
	return nil
}

// Stop gracefully stops the refresher
func (r *TemplateRefresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	return waitGroupWithContext(ctx, &r.wg, r.logger)
}
