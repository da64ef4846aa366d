package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ExpiredArtifactSweeper deletes expired artifacts in batches
type ExpiredArtifactSweeper interface {
	SweepExpired(ctx context.Context, batch int) (int, error)
}

// SweepRecorder records how many artifacts a sweep removed
type SweepRecorder interface {
	AddSwept(ctx context.Context, n int)
}

// ArtifactSweeperConfig holds configuration for the artifact sweeper
type ArtifactSweeperConfig struct {
	// Enabled determines if the sweeper is active
	Enabled bool

	// Interval is the time between sweeps
	Interval time.Duration

	// BatchSize is the number of artifacts removed per batch
	BatchSize int

	// MaxBatches caps the batches of one sweep so a large backlog is drained
	// over several runs
	MaxBatches int

	// Timeout is the maximum time for one sweep
	Timeout time.Duration
}

// DefaultArtifactSweeperConfig returns default configuration
func DefaultArtifactSweeperConfig() ArtifactSweeperConfig {
	return ArtifactSweeperConfig{
		Enabled:    true,
		Interval:   time.Hour,
		BatchSize:  500,
		MaxBatches: 20,
		Timeout:    10 * time.Minute,
	}
}

// ArtifactSweeper periodically removes expired artifacts, bytes and
// metadata alike
type ArtifactSweeper struct {
	sweeper   ExpiredArtifactSweeper
	recorder  SweepRecorder
	logger    *zap.Logger
	config    ArtifactSweeperConfig
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewArtifactSweeper creates a new artifact sweeper. recorder may be nil.
func NewArtifactSweeper(sweeper ExpiredArtifactSweeper, recorder SweepRecorder, logger *zap.Logger, config ArtifactSweeperConfig) *ArtifactSweeper {
	defaults := DefaultArtifactSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.MaxBatches <= 0 {
		config.MaxBatches = defaults.MaxBatches
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactSweeper{
		sweeper:  sweeper,
		recorder: recorder,
		logger:   logger.Named("artifact_sweeper"),
		config:   config,
	}
}

// Start starts the sweep loop
func (s *ArtifactSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Artifact sweeper is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Artifact sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the sweeper
func (s *ArtifactSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
	return waitGroupWithContext(ctx, &s.wg, s.logger)
}

// IsRunning reports whether the loop is active
func (s *ArtifactSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *ArtifactSweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Sweep loop stopping")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce drains expired artifacts batch by batch until a batch comes back
// short, MaxBatches is reached or the timeout expires. It returns the number
// of artifacts removed.
func (s *ArtifactSweeper) SweepOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	total := 0
	for batch := 0; batch < s.config.MaxBatches; batch++ {
		removed, err := s.sweeper.SweepExpired(ctx, s.config.BatchSize)
		total += removed
		if err != nil {
			s.logger.Error("Artifact sweep failed",
				zap.Int("batch", batch),
				zap.Int("removed", removed),
				zap.Error(err),
			)
			break
		}
		if removed < s.config.BatchSize {
			break
		}
	}

	if s.recorder != nil && total > 0 {
		s.recorder.AddSwept(ctx, total)
	}
	s.logger.Info("Artifact sweep completed",
		zap.Int("removed", total),
		zap.Duration("duration", time.Since(start)),
	)
	return total
}

// waitGroupWithContext waits for wg or gives up when ctx is done
func waitGroupWithContext(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger) error {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.Warn("Stop timed out")
		return ctx.Err()
	}
}
