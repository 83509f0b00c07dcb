package director

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"event-director/internal/config"
	"event-director/internal/logger"
	"event-director/internal/routecache"
	"event-director/pkg/metrics"
)

const (
	TriggerStartup  = "startup"
	TriggerEvent    = "config_event"
	TriggerManual   = "manual"
	TriggerSchedule = "schedule"
)

// RouteWarmer is the part of the route cache a warm-up drives.
type RouteWarmer interface {
	WarmAll(ctx context.Context) (routecache.WarmStats, error)
	Flush(ctx context.Context) error
}

// Warmup preloads every active network map into the route cache.
type Warmup struct {
	cache  RouteWarmer
	cfg    config.WarmupConfig
	logger logger.Logger
	// mu serialises reloads so a flush never lands between another reload's
	// flush and re-warm.
	mu sync.Mutex
}

func NewWarmup(cache RouteWarmer, cfg config.WarmupConfig, log logger.Logger) *Warmup {
	return &Warmup{cache: cache, cfg: cfg, logger: log}
}

// Run loads all tenant configurations. A store failure is returned and the
// service must not start.
func (w *Warmup) Run(ctx context.Context) (routecache.WarmStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.warm(ctx, TriggerStartup)
}

// Reload drops the cache and warms it again.
func (w *Warmup) Reload(ctx context.Context, trigger string) (routecache.WarmStats, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.cache.Flush(ctx); err != nil {
		metrics.IncWarmup(trigger, "error")
		return routecache.WarmStats{}, fmt.Errorf("failed to flush route cache: %w", err)
	}
	return w.warm(ctx, trigger)
}

// ReloadRules satisfies the config update handler.
func (w *Warmup) ReloadRules(ctx context.Context) error {
	_, err := w.Reload(ctx, TriggerEvent)
	return err
}

func (w *Warmup) warm(ctx context.Context, trigger string) (routecache.WarmStats, error) {
	loading, failed := "Reloading all tenant network configurations...", "Failed to reload network configurations"
	if trigger == TriggerStartup {
		loading, failed = "Loading all tenant network configurations at startup...", "Failed to load network configurations at startup"
	}
	w.logger.InfowCtx(ctx, loading, "trigger", trigger)

	stats, err := w.cache.WarmAll(ctx)
	if err != nil {
		metrics.IncWarmup(trigger, "error")
		w.logger.ErrorwCtx(ctx, failed, "error", err)
		return routecache.WarmStats{}, err
	}

	metrics.IncWarmup(trigger, "success")
	metrics.SetNetworkMapsLoaded(stats.Active)

	switch {
	case stats.Active > 0:
		w.logger.InfowCtx(ctx, fmt.Sprintf("Successfully loaded %d network configurations for multi-tenant support", stats.Active),
			"entries", stats.Entries,
		)
		for _, loaded := range stats.Loaded {
			w.logger.DebugwCtx(ctx, "Cached network map",
				"tenant", loaded.TenantKey,
				"legacy", loaded.Legacy,
				"tx_types", loaded.TxTypes,
			)
		}
	case stats.Documents > 0:
		w.logger.InfowCtx(ctx, "No active network configurations found in database")
	default:
		w.logger.InfowCtx(ctx, "No network configurations found in database")
	}

	return stats, nil
}

// StartReloader re-warms the cache every ReloadIntervalSeconds until ctx is
// done. It returns immediately when periodic reloads are disabled.
func (w *Warmup) StartReloader(ctx context.Context) error {
	if w.cfg.ReloadIntervalSeconds <= 0 {
		return nil
	}

	ticker := time.NewTicker(time.Duration(w.cfg.ReloadIntervalSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.applyJitter(ctx); err != nil {
				return err
			}
			if _, err := w.Reload(ctx, TriggerSchedule); err != nil {
				w.logger.ErrorwCtx(ctx, "Failed to reload network configurations",
					"error", err,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Warmup) applyJitter(ctx context.Context) error {
	if w.cfg.JitterMaxMilliseconds <= 0 {
		return nil
	}

	jitter := time.Duration(rand.Intn(w.cfg.JitterMaxMilliseconds)) * time.Millisecond
	w.logger.DebugwCtx(ctx, "Reload scheduled with jitter",
		"jitter_ms", jitter.Milliseconds(),
	)

	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
