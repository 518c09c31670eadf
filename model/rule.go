// model/rule.go
package model

type RuleAction string

const (
	RuleActionAllow RuleAction = "allow"
	RuleActionDeny  RuleAction = "deny"
)

// Rule is a per-resource access rule evaluated before any authentication.
// Rules are evaluated in descending priority; the first match wins.
type Rule struct {
	ID         string     `json:"id"`
	ResourceID string     `json:"resource_id"`
	Priority   int        `json:"priority"`
	PathPrefix string     `json:"path_prefix"`
	Method     string     `json:"method,omitempty"` // empty matches any method
	SourceCIDR string     `json:"source_cidr,omitempty"`
	Action     RuleAction `json:"action"`
}
