package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/pkg/clock"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
)

type calendarSeriesSource interface {
	ListAll(ctx context.Context) ([]models.RecurringSeries, error)
}

type calendarEventSource interface {
	ListAll(ctx context.Context) ([]models.OneOffEvent, error)
}

type calendarCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type calendarMetrics interface {
	ObserveCacheHit()
	ObserveCacheMiss()
	ObserveExpansion(duration time.Duration)
}

type refreshState int

const (
	refreshIdle refreshState = iota
	refreshRunning
)

// CalendarConfig tunes the coordinator's default window and cache TTL.
type CalendarConfig struct {
	PastMonths   int
	FutureMonths int
	CacheTTL     time.Duration
}

// CalendarService owns schedule recomputation. Expansion is a full recompute
// over immutable snapshots; the service memoizes the result per window and
// invalidates whenever series, exceptions or events change. A version counter
// guarantees that an in-flight mutation's invalidation wins over a
// concurrently completing refresh of pre-mutation state.
type CalendarService struct {
	series  calendarSeriesSource
	events  calendarEventSource
	cache   calendarCache
	clock   clock.Clock
	cfg     CalendarConfig
	logger  *zap.Logger
	metrics calendarMetrics

	mu      sync.Mutex
	state   refreshState
	version uint64
}

// NewCalendarService constructs the coordinator.
func NewCalendarService(series calendarSeriesSource, events calendarEventSource, cache calendarCache, clk clock.Clock, cfg CalendarConfig, logger *zap.Logger) *CalendarService {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PastMonths <= 0 {
		cfg.PastMonths = 2
	}
	if cfg.FutureMonths <= 0 {
		cfg.FutureMonths = 10
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &CalendarService{series: series, events: events, cache: cache, clock: clk, cfg: cfg, logger: logger}
}

// WithMetrics attaches cache and expansion instrumentation.
func (s *CalendarService) WithMetrics(metrics calendarMetrics) *CalendarService {
	s.metrics = metrics
	return s
}

// DefaultWindow derives the configured expansion window around "today".
func (s *CalendarService) DefaultWindow() models.Window {
	today := clock.Today(s.clock)
	return models.Window{
		From: today.AddDate(0, -s.cfg.PastMonths, 0),
		To:   today.AddDate(0, s.cfg.FutureMonths, 0),
	}
}

// Instances returns the expanded calendar for the window, sorted by start
// time for display. Results are served from cache when the underlying state
// has not changed since the last expansion.
func (s *CalendarService) Instances(ctx context.Context, window models.Window) ([]models.CalendarInstance, error) {
	if window.To.Before(window.From) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "window end precedes window start")
	}

	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	key := s.cacheKey(version, window)
	if s.cache != nil {
		var cached []models.CalendarInstance
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCacheHit()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.ObserveCacheMiss()
		}
	}

	started := s.clock.Now()
	instances, err := s.expand(ctx, window)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveExpansion(s.clock.Now().Sub(started))
	}

	if s.cache != nil {
		// Only memoize when no mutation landed while we were expanding;
		// a stale snapshot must not outlive the mutation that obsoleted it.
		s.mu.Lock()
		current := s.version
		s.mu.Unlock()
		if current == version {
			if err := s.cache.Set(ctx, key, instances, s.cfg.CacheTTL); err != nil {
				s.logger.Warn("calendar cache write failed", zap.Error(err))
			}
		}
	}

	return instances, nil
}

// Invalidate bumps the snapshot version and drops memoized windows. Called
// by series, exception and event mutations before they return.
func (s *CalendarService) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.version++
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, "calendar:*"); err != nil {
			s.logger.Warn("calendar cache invalidation failed", zap.Error(err))
		}
	}
}

// Refresh warms the default window in the background. Reentrant calls are
// suppressed: while one refresh runs, further triggers are no-ops, so a burst
// of mutations costs a single recompute.
func (s *CalendarService) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.state == refreshRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = refreshRunning
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = refreshIdle
		s.mu.Unlock()
	}()

	_, err := s.Instances(ctx, s.DefaultWindow())
	return err
}

func (s *CalendarService) expand(ctx context.Context, window models.Window) ([]models.CalendarInstance, error) {
	series, err := s.series.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recurring series")
	}
	events, err := s.events.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load events")
	}

	instances := ExpandWindow(series, events, window)
	sort.Slice(instances, func(i, j int) bool {
		if !instances[i].StartsAt.Equal(instances[j].StartsAt) {
			return instances[i].StartsAt.Before(instances[j].StartsAt)
		}
		return instances[i].ID < instances[j].ID
	})
	return instances, nil
}

func (s *CalendarService) cacheKey(version uint64, window models.Window) string {
	return fmt.Sprintf("calendar:v%d:%s:%s", version, window.From.Format("20060102"), window.To.Format("20060102"))
}
