package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	gw_errors "github.com/gatewarden/gatewarden/errors"
	"github.com/gatewarden/gatewarden/model"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

type fakeStore struct {
	mu        sync.Mutex
	resources map[string]*model.Resource
	rules     map[string][]model.Rule
	tokens    map[string]bool
	grants    map[string]*model.Grant
	roles     map[string]string
	err       error

	resourceCalls atomic.Int32
	ruleCalls     atomic.Int32
}

func (f *fakeStore) ResourceByHost(ctx context.Context, host string) (*model.Resource, error) {
	f.resourceCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	res, ok := f.resources[host]
	if !ok {
		return nil, gw_errors.ErrResourceNotFound
	}
	return res, nil
}

func (f *fakeStore) RulesForResource(ctx context.Context, resourceID string) ([]model.Rule, error) {
	f.ruleCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rules[resourceID], nil
}

func (f *fakeStore) AccessTokenValid(ctx context.Context, resourceID, tokenHash string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[resourceID+":"+tokenHash], nil
}

func (f *fakeStore) ResourceGrant(ctx context.Context, resourceID, userID string) (*model.Grant, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.grants[resourceID+":"+userID]
	if !ok {
		return nil, gw_errors.ErrGrantNotFound
	}
	return g, nil
}

func (f *fakeStore) OrgRole(ctx context.Context, orgID, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.roles[orgID+":"+userID], nil
}

type fakeSessions struct {
	sessions map[string]*model.Session
	err      error
}

func (f *fakeSessions) SessionByID(ctx context.Context, sessionID string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, gw_errors.ErrSessionNotFound
	}
	return sess, nil
}

func testConfig() Config {
	return Config{
		MaxKeys:     1000,
		ResourceTTL: time.Minute,
		RulesTTL:    time.Minute,
		SessionTTL:  time.Minute,
		GrantTTL:    time.Minute,
	}
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		resources: make(map[string]*model.Resource),
		rules:     make(map[string][]model.Rule),
		tokens:    make(map[string]bool),
		grants:    make(map[string]*model.Grant),
		roles:     make(map[string]string),
	}
}

func request(host, path string) *pdp_model.AccessRequest {
	return &pdp_model.AccessRequest{
		Scheme:   "https",
		Host:     host,
		Path:     path,
		Method:   "GET",
		ClientIP: "203.0.113.7",
		TLS:      true,
	}
}

func TestAuthorizeResourceNotFound(t *testing.T) {
	r := NewResolver(newFakeStore(), &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("unknown.example.com", "/"))
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonResourceNotFound, d.Reason)
}

func TestAuthorizeFailClosedOnStorageError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	r := NewResolver(store, &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("app.example.com", "/"))
	assert.Error(t, err)
	assert.False(t, d.Allowed, "a storage error must never yield an allow")
}

func TestAuthorizeBlockedResource(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{ID: "res-1", OrgID: "org-1", Host: "app.example.com", Blocked: true}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("app.example.com", "/"))
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonResourceBlocked, d.Reason)
}

func TestAuthorizeRuleShortCircuits(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{ID: "res-1", OrgID: "org-1", Host: "app.example.com", RequireAuth: true}
	store.rules["res-1"] = []model.Rule{
		{ID: "r-allow", ResourceID: "res-1", Priority: 1, PathPrefix: "/public", Action: model.RuleActionAllow},
		{ID: "r-deny", ResourceID: "res-1", Priority: 10, PathPrefix: "/public/secret", Action: model.RuleActionDeny},
	}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("app.example.com", "/public/docs"))
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedByRule, d.Reason)

	// Both rules match; the higher priority deny wins.
	d, err = r.Authorize(context.Background(), request("app.example.com", "/public/secret/x"))
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonDroppedByRule, d.Reason)
}

func TestAuthorizeOpenResource(t *testing.T) {
	store := newFakeStore()
	store.resources["open.example.com"] = &model.Resource{ID: "res-2", OrgID: "org-1", Host: "open.example.com", RequireAuth: false}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("open.example.com", "/"))
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedNoAuth, d.Reason)
}

func TestAuthorizeAccessToken(t *testing.T) {
	store := newFakeStore()
	store.resources["api.example.com"] = &model.Resource{
		ID: "res-3", OrgID: "org-1", Host: "api.example.com", RequireAuth: true,
		Methods: model.AuthMethods{AccessToken: true},
	}
	store.tokens["res-3:"+credentialHash("secret-token")] = true
	r := NewResolver(store, &fakeSessions{}, testConfig())

	req := request("api.example.com", "/v1/things")
	req.AccessToken = "secret-token"
	d, err := r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedAccessToken, d.Reason)
	assert.Equal(t, pdp_model.ActorTypeToken, d.ActorType)

	req.AccessToken = "wrong-token"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonNoMoreAuthMethods, d.Reason)
}

func TestAuthorizePincode(t *testing.T) {
	store := newFakeStore()
	store.resources["kiosk.example.com"] = &model.Resource{
		ID: "res-4", OrgID: "org-1", Host: "kiosk.example.com", RequireAuth: true,
		Methods:     model.AuthMethods{Pincode: true},
		PincodeHash: credentialHash("4711"),
	}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	req := request("kiosk.example.com", "/")
	req.Pincode = "4711"
	d, err := r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedPincode, d.Reason)
}

func TestAuthorizeSessionFlow(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{
		ID: "res-5", OrgID: "org-1", Host: "app.example.com", RequireAuth: true,
		Methods: model.AuthMethods{SSO: true},
	}
	store.grants["res-5:user-2"] = &model.Grant{UserID: "user-2", ResourceID: "res-5", Role: "viewer"}
	store.roles["org-1:user-1"] = model.OrgRoleMember
	sessions := &fakeSessions{sessions: map[string]*model.Session{
		"sess-member": {ID: "sess-member", UserID: "user-1", OrgID: "org-1", Email: "m@example.com", ExpiresAt: time.Now().Add(time.Hour)},
		"sess-guest":  {ID: "sess-guest", UserID: "user-2", OrgID: "org-9", Email: "g@example.com", ExpiresAt: time.Now().Add(time.Hour)},
		"sess-none":   {ID: "sess-none", UserID: "user-3", OrgID: "org-9", Email: "n@example.com", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	r := NewResolver(store, sessions, testConfig())

	// No cookie at all.
	d, err := r.Authorize(context.Background(), request("app.example.com", "/"))
	assert.NoError(t, err)
	assert.Equal(t, pdp_model.ReasonNoSession, d.Reason)

	// Org member.
	req := request("app.example.com", "/")
	req.SessionID = "sess-member"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedSession, d.Reason)
	assert.Equal(t, "user-1", d.ActorID)

	// Cross-org user with a direct grant.
	req.SessionID = "sess-guest"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedSession, d.Reason)

	// Valid session, no role, no grant.
	req.SessionID = "sess-none"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonNoMoreAuthMethods, d.Reason)

	// Unknown cookie.
	req.SessionID = "sess-unknown"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonNoSession, d.Reason)
}

func TestAuthorizeExpiredEmailToken(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{
		ID: "res-6", OrgID: "org-1", Host: "app.example.com", RequireAuth: true,
		Methods: model.AuthMethods{EmailToken: true, SSO: true},
	}
	sessions := &fakeSessions{sessions: map[string]*model.Session{
		"tok-live": {ID: "tok-live", UserID: "user-1", OrgID: "org-1", Email: "u@example.com", Temporary: true, ExpiresAt: time.Now().Add(time.Hour)},
		"tok-dead": {ID: "tok-dead", UserID: "user-1", OrgID: "org-1", Email: "u@example.com", Temporary: true, ExpiresAt: time.Now().Add(-time.Hour)},
	}}
	r := NewResolver(store, sessions, testConfig())

	req := request("app.example.com", "/doc")
	req.EmailToken = "tok-live"
	d, err := r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedEmailToken, d.Reason)

	req.EmailToken = "tok-dead"
	d, err = r.Authorize(context.Background(), req)
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonTemporaryToken, d.Reason)
}

// An unauthenticated flood against one resource must collapse to a single
// storage lookup per TTL window, not one per request.
func TestAuthorizeFloodSingleLookupPerWindow(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{
		ID: "res-7", OrgID: "org-1", Host: "app.example.com", RequireAuth: true,
		Methods: model.AuthMethods{SSO: true},
	}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	for i := 0; i < 3000; i++ {
		d, err := r.Authorize(context.Background(), request("app.example.com", "/"))
		assert.NoError(t, err)
		assert.False(t, d.Allowed)
	}

	assert.Equal(t, int32(1), store.resourceCalls.Load())
	assert.Equal(t, int32(1), store.ruleCalls.Load())
}

func TestAuthorizeRuleCIDRMatch(t *testing.T) {
	store := newFakeStore()
	store.resources["app.example.com"] = &model.Resource{ID: "res-8", OrgID: "org-1", Host: "app.example.com", RequireAuth: true}
	store.rules["res-8"] = []model.Rule{
		{ID: "r-office", ResourceID: "res-8", Priority: 5, SourceCIDR: "203.0.113.0/24", Action: model.RuleActionAllow},
	}
	r := NewResolver(store, &fakeSessions{}, testConfig())

	d, err := r.Authorize(context.Background(), request("app.example.com", "/"))
	assert.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, pdp_model.ReasonAllowedByRule, d.Reason)

	outside := request("app.example.com", "/")
	outside.ClientIP = "198.51.100.9"
	d, err = r.Authorize(context.Background(), outside)
	assert.NoError(t, err)
	assert.False(t, d.Allowed)
}
