// pdp/engine/redirect.go
package engine

import (
	"net/url"
	"strings"

	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

// RedirectPolicy computes the login-challenge redirect for denied
// unauthenticated requests.
//
// The structural invariant: a request whose path already targets the
// challenge page never gets another redirect. Without this check a client
// intercepted while fetching the challenge page would receive a redirect
// wrapping the previous challenge URL, and each hop would nest another
// encoded copy until the URL is megabytes long. A depth limit would only
// slow that growth; the prefix check removes it entirely.
type RedirectPolicy struct {
	challengePrefix string
}

func NewRedirectPolicy(challengePathPrefix string) *RedirectPolicy {
	return &RedirectPolicy{challengePrefix: strings.TrimSuffix(challengePathPrefix, "/")}
}

// challengeable reports whether a login challenge can actually cure the deny
// reason. Rule drops and blocked resources stay plain denials.
func challengeable(reason pdp_model.ReasonCode) bool {
	switch reason {
	case pdp_model.ReasonNoSession, pdp_model.ReasonTemporaryToken, pdp_model.ReasonNoMoreAuthMethods:
		return true
	default:
		return false
	}
}

// Compute returns the redirect target for a denied request, or "" when no
// redirect applies. The result round-trips through exactly one URL decode to
// recover the original destination.
func (p *RedirectPolicy) Compute(req *pdp_model.AccessRequest, decision pdp_model.Decision) string {
	if decision.Allowed || decision.ResourceID == "" || !challengeable(decision.Reason) {
		return ""
	}
	if strings.HasPrefix(req.Path, p.challengePrefix) {
		return ""
	}
	return p.challengePrefix + "/" + decision.ResourceID + "?redirect=" + url.QueryEscape(req.URL())
}
