// pdp/engine/resolver.go
package engine

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gatewarden/gatewarden/cache"
	gw_errors "github.com/gatewarden/gatewarden/errors"
	"github.com/gatewarden/gatewarden/model"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

// Store is the relational lookup surface the resolver falls back to on cache
// misses.
type Store interface {
	ResourceByHost(ctx context.Context, host string) (*model.Resource, error)
	RulesForResource(ctx context.Context, resourceID string) ([]model.Rule, error)
	AccessTokenValid(ctx context.Context, resourceID, tokenHash string) (bool, error)
	ResourceGrant(ctx context.Context, resourceID, userID string) (*model.Grant, error)
	OrgRole(ctx context.Context, orgID, userID string) (string, error)
}

// SessionStore resolves a session cookie to a session.
type SessionStore interface {
	SessionByID(ctx context.Context, sessionID string) (*model.Session, error)
}

// Config carries the per-key-class cache tuning. Resource, session and grant
// lookups tolerate a minute of staleness; rules change more often and get a
// much shorter window.
type Config struct {
	MaxKeys       int
	SweepInterval time.Duration
	ResourceTTL   time.Duration
	RulesTTL      time.Duration
	SessionTTL    time.Duration
	GrantTTL      time.Duration
}

// Resolver maps an inbound request to an allow/deny decision. All lookups go
// through TTL caches with the blocking stampede guard, so a flood of
// requests for one cold host collapses to a single storage query per TTL
// window. Storage failures propagate as errors; the caller must treat them
// as deny.
type Resolver struct {
	store    Store
	sessions SessionStore

	resources *cache.Loader[*model.Resource]
	rules     *cache.Loader[[]model.Rule]
	session   *cache.Loader[*model.Session]
	tokens    *cache.Loader[bool]
	grants    *cache.Loader[*model.Grant]
	roles     *cache.Loader[string]

	now func() time.Time
}

func NewResolver(store Store, sessions SessionStore, cfg Config) *Resolver {
	return &Resolver{
		store:     store,
		sessions:  sessions,
		resources: cache.NewLoader(cache.New[*model.Resource]("resource", cfg.MaxKeys, cfg.SweepInterval), cfg.ResourceTTL),
		rules:     cache.NewLoader(cache.New[[]model.Rule]("rules", cfg.MaxKeys, cfg.SweepInterval), cfg.RulesTTL),
		session:   cache.NewLoader(cache.New[*model.Session]("session", cfg.MaxKeys, cfg.SweepInterval), cfg.SessionTTL),
		tokens:    cache.NewLoader(cache.New[bool]("token", cfg.MaxKeys, cfg.SweepInterval), cfg.GrantTTL),
		grants:    cache.NewLoader(cache.New[*model.Grant]("grant", cfg.MaxKeys, cfg.SweepInterval), cfg.GrantTTL),
		roles:     cache.NewLoader(cache.New[string]("role", cfg.MaxKeys, cfg.SweepInterval), cfg.GrantTTL),
		now:       time.Now,
	}
}

// Stats returns cache counters per key class, for the statusz endpoint.
func (r *Resolver) Stats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"resource": r.resources.Stats(),
		"rules":    r.rules.Stats(),
		"session":  r.session.Stats(),
		"token":    r.tokens.Stats(),
		"grant":    r.grants.Stats(),
		"role":     r.roles.Stats(),
	}
}

// Authorize evaluates the request. Checks short-circuit in a fixed order:
// resource lookup, resource rules, open resources, then each credential the
// client presented, cheapest first. A non-nil error means storage was
// unavailable mid-decision and the request must be denied by the caller.
func (r *Resolver) Authorize(ctx context.Context, req *pdp_model.AccessRequest) (pdp_model.Decision, error) {
	res, err := r.resources.Load(ctx, "resource:"+req.Host, func(ctx context.Context) (*model.Resource, error) {
		found, err := r.store.ResourceByHost(ctx, req.Host)
		if errors.Is(err, gw_errors.ErrResourceNotFound) {
			// Unknown hosts are cached too; abusive traffic hammers
			// exactly these.
			return nil, nil
		}
		return found, err
	})
	if err != nil {
		return pdp_model.Decision{}, fmt.Errorf("resolve resource for host %q: %w", req.Host, err)
	}
	if res == nil {
		return deny(pdp_model.ReasonResourceNotFound, nil), nil
	}

	d := pdp_model.Decision{
		ResourceID: res.ID,
		OrgID:      res.OrgID,
		ActorType:  pdp_model.ActorTypeAnonymous,
	}

	if res.Blocked {
		d.Reason = pdp_model.ReasonResourceBlocked
		return d, nil
	}

	rules, err := r.rules.Load(ctx, "rules:"+res.ID, func(ctx context.Context) ([]model.Rule, error) {
		return r.store.RulesForResource(ctx, res.ID)
	})
	if err != nil {
		return pdp_model.Decision{}, fmt.Errorf("load rules for resource %q: %w", res.ID, err)
	}
	if rule := matchRule(rules, req); rule != nil {
		if rule.Action == model.RuleActionAllow {
			d.Allowed = true
			d.Reason = pdp_model.ReasonAllowedByRule
		} else {
			d.Reason = pdp_model.ReasonDroppedByRule
		}
		return d, nil
	}

	if !res.RequireAuth {
		d.Allowed = true
		d.Reason = pdp_model.ReasonAllowedNoAuth
		return d, nil
	}

	if res.Methods.AccessToken && req.AccessToken != "" {
		tokenHash := credentialHash(req.AccessToken)
		valid, err := r.tokens.Load(ctx, "token:"+res.ID+":"+tokenHash, func(ctx context.Context) (bool, error) {
			return r.store.AccessTokenValid(ctx, res.ID, tokenHash)
		})
		if err != nil {
			return pdp_model.Decision{}, fmt.Errorf("check access token for resource %q: %w", res.ID, err)
		}
		if valid {
			d.Allowed = true
			d.Reason = pdp_model.ReasonAllowedAccessToken
			d.ActorType = pdp_model.ActorTypeToken
			return d, nil
		}
	}

	if res.Methods.HeaderAuth && req.BasicUser != "" {
		if req.BasicUser == res.HeaderAuthUser && credentialEqual(req.BasicSecret, res.HeaderAuthHash) {
			d.Allowed = true
			d.Reason = pdp_model.ReasonAllowedHeaderAuth
			d.ActorType = pdp_model.ActorTypeUser
			d.Actor = req.BasicUser
			return d, nil
		}
	}

	if res.Methods.Pincode && req.Pincode != "" && credentialEqual(req.Pincode, res.PincodeHash) {
		d.Allowed = true
		d.Reason = pdp_model.ReasonAllowedPincode
		return d, nil
	}

	if res.Methods.Password && req.Password != "" && credentialEqual(req.Password, res.PasswordHash) {
		d.Allowed = true
		d.Reason = pdp_model.ReasonAllowedPassword
		return d, nil
	}

	if res.Methods.EmailToken && req.EmailToken != "" {
		sess, err := r.loadSession(ctx, req.EmailToken)
		if err != nil {
			return pdp_model.Decision{}, fmt.Errorf("resolve email token: %w", err)
		}
		if sess == nil || !sess.Temporary || sess.Expired(r.now()) {
			// A presented-but-dead temporary token is a terminal deny,
			// not a fall-through: the link the user clicked has expired.
			d.Reason = pdp_model.ReasonTemporaryToken
			return d, nil
		}
		d.Allowed = true
		d.Reason = pdp_model.ReasonAllowedEmailToken
		d.ActorType = pdp_model.ActorTypeUser
		d.Actor = sess.Email
		d.ActorID = sess.UserID
		return d, nil
	}

	if res.Methods.SSO {
		if req.SessionID == "" {
			d.Reason = pdp_model.ReasonNoSession
			return d, nil
		}
		sess, err := r.loadSession(ctx, req.SessionID)
		if err != nil {
			return pdp_model.Decision{}, fmt.Errorf("resolve session: %w", err)
		}
		if sess == nil || sess.Temporary || sess.Expired(r.now()) {
			d.Reason = pdp_model.ReasonNoSession
			return d, nil
		}

		d.ActorType = pdp_model.ActorTypeUser
		d.Actor = sess.Email
		d.ActorID = sess.UserID

		if sess.OrgID == res.OrgID {
			role, err := r.roles.Load(ctx, "role:"+res.OrgID+":"+sess.UserID, func(ctx context.Context) (string, error) {
				return r.store.OrgRole(ctx, res.OrgID, sess.UserID)
			})
			if err != nil {
				return pdp_model.Decision{}, fmt.Errorf("load org role: %w", err)
			}
			if role == model.OrgRoleAdmin || role == model.OrgRoleMember {
				d.Allowed = true
				d.Reason = pdp_model.ReasonAllowedSession
				return d, nil
			}
		}

		grant, err := r.grants.Load(ctx, "grant:"+res.ID+":"+sess.UserID, func(ctx context.Context) (*model.Grant, error) {
			g, err := r.store.ResourceGrant(ctx, res.ID, sess.UserID)
			if errors.Is(err, gw_errors.ErrGrantNotFound) {
				return nil, nil
			}
			return g, err
		})
		if err != nil {
			return pdp_model.Decision{}, fmt.Errorf("load resource grant: %w", err)
		}
		if grant != nil {
			d.Allowed = true
			d.Reason = pdp_model.ReasonAllowedSession
			return d, nil
		}
	}

	d.Reason = pdp_model.ReasonNoMoreAuthMethods
	return d, nil
}

func (r *Resolver) loadSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return r.session.Load(ctx, "session:"+sessionID, func(ctx context.Context) (*model.Session, error) {
		sess, err := r.sessions.SessionByID(ctx, sessionID)
		if errors.Is(err, gw_errors.ErrSessionNotFound) {
			return nil, nil
		}
		return sess, err
	})
}

// matchRule returns the highest-priority rule matching the request, or nil.
func matchRule(rules []model.Rule, req *pdp_model.AccessRequest) *model.Rule {
	var best *model.Rule
	for i := range rules {
		rule := &rules[i]
		if !ruleMatches(rule, req) {
			continue
		}
		if best == nil || rule.Priority > best.Priority {
			best = rule
		}
	}
	return best
}

func ruleMatches(rule *model.Rule, req *pdp_model.AccessRequest) bool {
	if rule.PathPrefix != "" && !hasPathPrefix(req.Path, rule.PathPrefix) {
		return false
	}
	if rule.Method != "" && rule.Method != req.Method {
		return false
	}
	if rule.SourceCIDR != "" {
		_, network, err := net.ParseCIDR(rule.SourceCIDR)
		if err != nil {
			return false
		}
		ip := net.ParseIP(req.ClientIP)
		if ip == nil || !network.Contains(ip) {
			return false
		}
	}
	return true
}

func hasPathPrefix(path, prefix string) bool {
	if len(path) < len(prefix) {
		return false
	}
	return path[:len(prefix)] == prefix
}

func deny(reason pdp_model.ReasonCode, _ *model.Resource) pdp_model.Decision {
	return pdp_model.Decision{
		Allowed:   false,
		Reason:    reason,
		ActorType: pdp_model.ActorTypeAnonymous,
	}
}

func credentialHash(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func credentialEqual(secret, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(credentialHash(secret)), []byte(storedHash)) == 1
}
