// model/retention.go
package model

// LogKind partitions audit records into independently retained categories.
type LogKind string

const (
	LogKindAccess  LogKind = "access"
	LogKindAction  LogKind = "action"
	LogKindRequest LogKind = "request"
)

// LogKinds lists every category, in sweep order.
var LogKinds = []LogKind{LogKindAccess, LogKindAction, LogKindRequest}

// RetainThroughNextYear is the sentinel day count meaning "keep records
// through the end of the following calendar year" instead of a rolling
// window.
const RetainThroughNextYear = -1

// RetentionPolicy holds a tenant's per-category retention windows in days.
// A zero (or missing) entry disables retention for that category entirely.
type RetentionPolicy struct {
	OrgID string          `json:"org_id"`
	Days  map[LogKind]int `json:"days"`
}

// Enabled reports whether records of the given kind are retained at all.
func (p *RetentionPolicy) Enabled(kind LogKind) bool {
	if p == nil {
		return false
	}
	return p.Days[kind] != 0
}
