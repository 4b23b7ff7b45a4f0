package task

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskhub-auth/internal/metrics"
	"github.com/phrazzld/taskhub-auth/internal/platform/logger"
)

// ExpiredRecordDeleter removes refresh records whose expiry lies strictly before cutoff.
type ExpiredRecordDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper is the retention task for refresh records. It only ever passes the
// current time as the cutoff, so records that are still valid are never deleted.
type Sweeper struct {
	records ExpiredRecordDeleter
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperClock overrides the time source.
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) { s.now = now }
}

// NewSweeper creates a Sweeper. m and logger may be nil.
func NewSweeper(records ExpiredRecordDeleter, m *metrics.Metrics, log *slog.Logger, opts ...SweeperOption) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{
		records: records,
		now:     time.Now,
		metrics: m,
		logger:  log.With(slog.String("component", "refresh_sweeper")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Task = (*Sweeper)(nil)

// Type implements Task.
func (s *Sweeper) Type() string {
	return TaskTypeRefreshSweep
}

// Execute implements Task.
func (s *Sweeper) Execute(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep deletes every refresh record that expired before now and returns the count.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)
	cutoff := s.now().UTC()

	n, err := s.records.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired refresh records: %w", err)
	}

	s.metrics.Swept(n)
	if n > 0 {
		log.Info("expired refresh records deleted",
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff))
	} else {
		log.Debug("no expired refresh records")
	}
	return n, nil
}
