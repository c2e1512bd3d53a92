// Package ingest orchestrates sync cycles: fetch native records from a
// platform client, normalize them, and upsert them into the unified store,
// with every cycle recorded in the sync ledger.
package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/matome/internal/config"
	"github.com/hyperjump/matome/internal/metrics"
	"github.com/hyperjump/matome/internal/models"
	"github.com/hyperjump/matome/internal/normalize"
	"github.com/hyperjump/matome/internal/platform"
	"github.com/hyperjump/matome/internal/store"
	"github.com/hyperjump/matome/pkg/errors"
	"github.com/hyperjump/matome/pkg/utils"
)

// Coordinator runs sync cycles. At most one cycle per platform is in flight
// at a time; cycles for distinct platforms run independently.
type Coordinator struct {
	store   store.Store
	clients map[platform.Platform]platform.Client
	config  *config.SyncConfig
	logger  *zap.Logger
	metrics *metrics.Metrics // optional

	mu      sync.Mutex
	running map[platform.Platform]bool
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithMetrics sets the metrics collectors.
func WithMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

// NewCoordinator creates a coordinator over the given platform clients.
func NewCoordinator(st store.Store, clients []platform.Client, cfg *config.SyncConfig, logger *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	byPlatform := make(map[platform.Platform]platform.Client, len(clients))
	for _, client := range clients {
		byPlatform[client.Source()] = client
	}
	c := &Coordinator{
		store:   st,
		clients: byPlatform,
		config:  cfg,
		logger:  logger,
		running: make(map[platform.Platform]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Platforms returns the configured platforms in stable order.
func (c *Coordinator) Platforms() []platform.Platform {
	var out []platform.Platform
	for _, p := range platform.All() {
		if _, ok := c.clients[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Sync runs one cycle for p. The returned SyncRun is always non-nil once the
// ledger row was opened; it reports the final status even when err is set.
// Records that fail normalization are skipped and counted; a client or store
// failure aborts the cycle, leaving earlier upserts committed — re-running
// converges because upserts are idempotent.
func (c *Coordinator) Sync(ctx context.Context, p platform.Platform) (*models.SyncRun, error) {
	client, ok := c.clients[p]
	if !ok {
		return nil, errors.Validation(fmt.Sprintf("no client configured for platform %q", p))
	}
	if !c.acquire(p) {
		return nil, errors.SyncInProgress(fmt.Sprintf("sync already running for platform %q", p))
	}
	defer c.release(p)

	if c.config.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout())
		defer cancel()
	}

	run := &models.SyncRun{
		RunID:     uuid.New().String(),
		Platform:  string(p),
		Status:    models.SyncStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := c.store.CreateSyncRun(ctx, run); err != nil {
		return nil, err
	}
	log := c.logger.With(zap.String("platform", string(p)), zap.String("run_id", run.RunID))
	log.Info("sync cycle started")

	records, err := client.FetchRecent(ctx, c.config.MaxMessages)
	if err != nil {
		log.Error("fetch failed", zap.Error(err))
		return run, c.finalize(ctx, run, err)
	}
	// The client owns pagination, but the batch bound holds even against a
	// client that returns more than asked.
	if c.config.MaxMessages > 0 && len(records) > c.config.MaxMessages {
		records = records[:c.config.MaxMessages]
	}

	for _, rec := range records {
		if ctx.Err() != nil {
			err := errors.Client("sync cancelled", ctx.Err())
			return run, c.finalize(ctx, run, err)
		}
		msg, err := normalize.Record(rec)
		if err != nil {
			run.SkippedCount++
			log.Warn("record skipped", zap.Error(err))
			continue
		}
		if err := c.store.UpsertMessage(ctx, msg); err != nil {
			log.Error("upsert failed", zap.String("platform_id", msg.PlatformID), zap.Error(err))
			return run, c.finalize(ctx, run, err)
		}
		run.MessagesCount++
		log.Debug("message upserted",
			zap.String("platform_id", msg.PlatformID),
			zap.String("title", utils.Truncate(msg.Title, 40)),
		)
	}

	if err := c.finalize(ctx, run, nil); err != nil {
		return run, err
	}
	log.Info("sync cycle finished",
		zap.String("status", run.Status),
		zap.Int("messages", run.MessagesCount),
		zap.Int("skipped", run.SkippedCount),
	)
	return run, nil
}

// finalize closes the ledger row. When fatal is set the run is marked error
// and fatal is returned; otherwise the status is success, or partial when
// records were skipped.
func (c *Coordinator) finalize(ctx context.Context, run *models.SyncRun, fatal error) error {
	completed := time.Now().UTC()
	run.CompletedAt = &completed
	run.DurationSeconds = completed.Sub(run.StartedAt).Seconds()
	switch {
	case fatal != nil:
		run.Status = models.SyncStatusError
		run.ErrorMessage = fatal.Error()
	case run.SkippedCount > 0:
		run.Status = models.SyncStatusPartial
	default:
		run.Status = models.SyncStatusSuccess
	}

	// Finalize against a fresh context: the cycle's deadline may already
	// have expired, but the ledger row must still be closed.
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	if err := c.store.FinalizeSyncRun(ctx, run); err != nil {
		c.logger.Error("failed to finalize sync run",
			zap.String("run_id", run.RunID), zap.Error(err))
		if fatal == nil {
			return err
		}
	}
	if c.metrics != nil {
		c.metrics.SyncRunsTotal.WithLabelValues(run.Platform, run.Status).Inc()
		c.metrics.SyncMessagesTotal.WithLabelValues(run.Platform).Add(float64(run.MessagesCount))
	}
	return fatal
}

// SyncAll runs one cycle per configured platform concurrently. Platforms are
// independent: one platform's failure never blocks another's; each failure is
// captured in its own SyncRun. The returned slice holds one run per platform
// that opened a ledger row, in platform order.
func (c *Coordinator) SyncAll(ctx context.Context) []*models.SyncRun {
	platforms := c.Platforms()
	runs := make([]*models.SyncRun, len(platforms))

	var g errgroup.Group
	g.SetLimit(c.config.MaxConcurrency)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			run, err := c.Sync(ctx, p)
			if err != nil {
				c.logger.Warn("platform sync failed",
					zap.String("platform", string(p)), zap.Error(err))
			}
			runs[i] = run
			return nil
		})
	}
	_ = g.Wait()

	out := runs[:0]
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	return out
}

func (c *Coordinator) acquire(p platform.Platform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running[p] {
		return false
	}
	c.running[p] = true
	return true
}

func (c *Coordinator) isRunning(p platform.Platform) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running[p]
}

func (c *Coordinator) release(p platform.Platform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.running, p)
}
