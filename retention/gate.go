// retention/gate.go
package retention

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/cache"
	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/model"
)

// PolicySource loads one tenant's retention policy from storage.
type PolicySource interface {
	RetentionPolicy(ctx context.Context, orgID string) (*model.RetentionPolicy, error)
}

// Gate is the audit batcher's per-tenant "does this org retain logs" check.
//
// The lookup is cached with a long TTL and guarded by the no-wait stampede
// guard: under load, concurrent callers hitting a cold tenant get an instant
// answer instead of queueing behind one storage query. The answer during
// that in-flight window, and whenever storage is unavailable, is
// defaultOpen. Whether to assume retention on or off while uncertain is a
// deployment decision, not a guess this code makes.
type Gate struct {
	source      PolicySource
	policies    *cache.Loader[*model.RetentionPolicy]
	defaultOpen bool
}

// GateConfig tunes the gate's cache. TTL should be long (an hour): policies
// change rarely and the whole point is to not look them up per request.
type GateConfig struct {
	MaxKeys       int
	SweepInterval time.Duration
	TTL           time.Duration
	DefaultOpen   bool
}

func NewGate(source PolicySource, cfg GateConfig) *Gate {
	return &Gate{
		source:      source,
		policies:    cache.NewLoader(cache.New[*model.RetentionPolicy]("retention", cfg.MaxKeys, cfg.SweepInterval), cfg.TTL),
		defaultOpen: cfg.DefaultOpen,
	}
}

// Enabled reports whether orgID retains records of kind. It never blocks
// behind another caller's lookup and never fails; uncertainty resolves to
// the configured default.
func (g *Gate) Enabled(ctx context.Context, orgID string, kind model.LogKind) bool {
	policy, err := g.policies.LoadNoWait(ctx, "retention:"+orgID, nil, func(ctx context.Context) (*model.RetentionPolicy, error) {
		return g.source.RetentionPolicy(ctx, orgID)
	})
	if err != nil {
		logger.Warn("Retention policy lookup failed, using default",
			zap.Error(err),
			zap.String("orgID", orgID),
			zap.Bool("default_open", g.defaultOpen))
		return g.defaultOpen
	}
	if policy == nil {
		// In-flight window fallback.
		return g.defaultOpen
	}
	return policy.Enabled(kind)
}
