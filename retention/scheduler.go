// retention/scheduler.go
package retention

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gatewarden/gatewarden/audit"
	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/metrics"
	"github.com/gatewarden/gatewarden/model"
)

// PolicyLister loads every tenant's retention policy for a sweep.
type PolicyLister interface {
	RetentionPolicies(ctx context.Context) ([]model.RetentionPolicy, error)
}

// Scheduler periodically purges expired audit records per tenant and log
// kind. Sweeps are best-effort: one tenant's failure is logged and the rest
// of the sweep continues; whatever was missed is retried on the next tick.
type Scheduler struct {
	policies PolicyLister
	repo     audit.Repository

	interval     time.Duration
	deleteBudget time.Duration
	now          func() time.Time

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewScheduler(policies PolicyLister, repo audit.Repository, interval, deleteBudget time.Duration) *Scheduler {
	return &Scheduler{
		policies:     policies,
		repo:         repo,
		interval:     interval,
		deleteBudget: deleteBudget,
		now:          time.Now,
		done:         make(chan struct{}),
	}
}

// Start launches the sweep loop.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the loop. An in-progress sweep finishes its current deletes.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweepSupervised()
		}
	}
}

func (s *Scheduler) sweepSupervised() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Retention sweep panicked", zap.Any("panic", r))
			metrics.SweepRunsTotal.WithLabelValues("panic").Inc()
		}
	}()
	s.Sweep(context.Background())
}

// Sweep runs one full purge pass over every tenant.
func (s *Scheduler) Sweep(ctx context.Context) {
	policies, err := s.policies.RetentionPolicies(ctx)
	if err != nil {
		logger.Error("Failed to load retention policies for sweep", zap.Error(err))
		metrics.SweepRunsTotal.WithLabelValues("error").Inc()
		return
	}

	now := s.now()
	var totalDeleted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, policy := range policies {
		policy := policy
		g.Go(func() error {
			if deleted := s.sweepTenant(gctx, policy, now); deleted > 0 {
				totalDeleted.Add(deleted)
			}
			// Per-tenant failures never abort the sweep.
			return nil
		})
	}
	g.Wait()

	metrics.SweepRunsTotal.WithLabelValues("ok").Inc()
	logger.Info("Retention sweep complete",
		zap.Int("tenants", len(policies)),
		zap.Int64("deleted", totalDeleted.Load()))
}

func (s *Scheduler) sweepTenant(ctx context.Context, policy model.RetentionPolicy, now time.Time) int64 {
	var deleted int64
	for _, kind := range model.LogKinds {
		days, ok := policy.Days[kind]
		if !ok || days == 0 {
			continue
		}
		cutoff := Cutoff(days, now)

		dctx, cancel := context.WithTimeout(ctx, s.deleteBudget)
		n, err := s.repo.DeleteOlderThan(dctx, policy.OrgID, kind, cutoff)
		cancel()
		if err != nil {
			logger.Error("Failed to purge expired audit records",
				zap.Error(err),
				zap.String("orgID", policy.OrgID),
				zap.String("kind", string(kind)))
			continue
		}
		deleted += n
		if n > 0 {
			metrics.SweepDeletedTotal.Add(float64(n))
		}
	}
	return deleted
}
