// pdp/model/decision.go
package model

import "strconv"

// ReasonCode identifies why an authorization decision was made. The numeric
// values are a stable wire contract consumed by the audit log and operator
// dashboards; never renumber them.
type ReasonCode int

const (
	ReasonAllowedByRule      ReasonCode = 100
	ReasonAllowedNoAuth      ReasonCode = 101
	ReasonAllowedAccessToken ReasonCode = 102
	ReasonAllowedHeaderAuth  ReasonCode = 103
	ReasonAllowedPincode     ReasonCode = 104
	ReasonAllowedPassword    ReasonCode = 105
	ReasonAllowedEmailToken  ReasonCode = 106
	ReasonAllowedSession     ReasonCode = 107

	ReasonResourceNotFound  ReasonCode = 201
	ReasonResourceBlocked   ReasonCode = 202
	ReasonDroppedByRule     ReasonCode = 203
	ReasonNoSession         ReasonCode = 204
	ReasonTemporaryToken    ReasonCode = 205
	ReasonNoMoreAuthMethods ReasonCode = 299
)

// Allowed reports whether the code is in the allow range.
func (r ReasonCode) Allowed() bool {
	return r >= 100 && r < 200
}

func (r ReasonCode) String() string {
	switch r {
	case ReasonAllowedByRule:
		return "allowed_by_rule"
	case ReasonAllowedNoAuth:
		return "allowed_no_auth"
	case ReasonAllowedAccessToken:
		return "allowed_access_token"
	case ReasonAllowedHeaderAuth:
		return "allowed_header_auth"
	case ReasonAllowedPincode:
		return "allowed_pincode"
	case ReasonAllowedPassword:
		return "allowed_password"
	case ReasonAllowedEmailToken:
		return "allowed_email_token"
	case ReasonAllowedSession:
		return "allowed_session"
	case ReasonResourceNotFound:
		return "resource_not_found"
	case ReasonResourceBlocked:
		return "resource_blocked"
	case ReasonDroppedByRule:
		return "dropped_by_rule"
	case ReasonNoSession:
		return "no_session"
	case ReasonTemporaryToken:
		return "temporary_token"
	case ReasonNoMoreAuthMethods:
		return "no_more_auth_methods"
	default:
		return "reason_" + strconv.Itoa(int(r))
	}
}

// ActorType classifies who (or what) a decision was made for.
const (
	ActorTypeUser      = "user"
	ActorTypeToken     = "token"
	ActorTypeAnonymous = "anonymous"
)

// Decision is the outcome of authorizing a single request.
type Decision struct {
	Allowed    bool       `json:"allowed"`
	Reason     ReasonCode `json:"reason"`
	ResourceID string     `json:"resource_id,omitempty"`
	OrgID      string     `json:"org_id,omitempty"`
	ActorType  string     `json:"actor_type,omitempty"`
	Actor      string     `json:"actor,omitempty"`
	ActorID    string     `json:"actor_id,omitempty"`
	Redirect   string     `json:"redirect,omitempty"`
}
