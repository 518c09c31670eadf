// service/verify_service.go
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gatewarden/gatewarden/audit"
	"github.com/gatewarden/gatewarden/cache"
	logger "github.com/gatewarden/gatewarden/logging"
	"github.com/gatewarden/gatewarden/metrics"
	"github.com/gatewarden/gatewarden/model"
	"github.com/gatewarden/gatewarden/pdp/engine"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

// Stats aggregates the observable state of the verification path.
type Stats struct {
	Caches  map[string]cache.Stats `json:"caches"`
	Batcher audit.BatcherStats     `json:"batcher"`
}

// IVerifyService is the verification surface the HTTP controller consumes.
type IVerifyService interface {
	Verify(ctx context.Context, req *pdp_model.AccessRequest) pdp_model.Decision
	Stats() Stats
}

// VerifyService glues resolver, redirect policy and audit batcher into the
// per-request verification path: decide, record, and on denial compute a
// safe redirect.
type VerifyService struct {
	resolver  *engine.Resolver
	redirects *engine.RedirectPolicy
	batcher   *audit.Batcher
}

func NewVerifyService(resolver *engine.Resolver, redirects *engine.RedirectPolicy, batcher *audit.Batcher) *VerifyService {
	return &VerifyService{
		resolver:  resolver,
		redirects: redirects,
		batcher:   batcher,
	}
}

// Verify authorizes one request. It never returns an error: a resolver
// failure (storage unavailable mid-decision) is logged and mapped to a deny.
// Fail-closed is the safety invariant here: under no circumstance does an
// internal error turn into an allow.
func (s *VerifyService) Verify(ctx context.Context, req *pdp_model.AccessRequest) pdp_model.Decision {
	decision, err := s.resolver.Authorize(ctx, req)
	if err != nil {
		logger.Error("Authorization failed, denying request",
			zap.Error(err),
			zap.String("host", req.Host),
			zap.String("path", req.Path))
		decision = pdp_model.Decision{
			Allowed:   false,
			Reason:    pdp_model.ReasonNoMoreAuthMethods,
			ActorType: pdp_model.ActorTypeAnonymous,
		}
	}

	decision.Redirect = s.redirects.Compute(req, decision)

	result := "deny"
	if decision.Allowed {
		result = "allow"
	}
	metrics.DecisionsTotal.WithLabelValues(result, strconv.Itoa(int(decision.Reason))).Inc()

	s.batcher.Record(ctx, buildRecord(req, decision))

	return decision
}

// Stats reports cache and batcher counters for the statusz endpoint.
func (s *VerifyService) Stats() Stats {
	return Stats{
		Caches:  s.resolver.Stats(),
		Batcher: s.batcher.Stats(),
	}
}

func buildRecord(req *pdp_model.AccessRequest, decision pdp_model.Decision) audit.Record {
	return audit.Record{
		ID:         uuid.New().String(),
		Timestamp:  time.Now().UTC(),
		OrgID:      decision.OrgID,
		ActorType:  decision.ActorType,
		Actor:      decision.Actor,
		ActorID:    decision.ActorID,
		ResourceID: decision.ResourceID,
		Allowed:    decision.Allowed,
		Reason:     decision.Reason,
		Kind:       model.LogKindAccess,
		Request: audit.RequestMetadata{
			OriginalURL: req.URL(),
			Scheme:      req.Scheme,
			Host:        req.Host,
			Path:        req.Path,
			Method:      req.Method,
			ClientIP:    req.ClientIP,
			TLS:         req.TLS,
		},
	}
}
