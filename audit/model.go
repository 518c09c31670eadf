// audit/model.go
package audit

import (
	"time"

	"github.com/gatewarden/gatewarden/model"
	pdp_model "github.com/gatewarden/gatewarden/pdp/model"
)

// RequestMetadata captures where the audited request was headed.
type RequestMetadata struct {
	OriginalURL string `json:"original_url"`
	Scheme      string `json:"scheme"`
	Host        string `json:"host"`
	Path        string `json:"path"`
	Method      string `json:"method"`
	ClientIP    string `json:"client_ip"`
	TLS         bool   `json:"tls"`
}

// Record is one authorization decision awaiting persistence. Records are
// created per request, handed to the Batcher, and either flushed in exactly
// one batch or counted as dropped.
type Record struct {
	ID         string               `json:"id"`
	Timestamp  time.Time            `json:"timestamp"`
	OrgID      string               `json:"org_id,omitempty"`
	ActorType  string               `json:"actor_type,omitempty"`
	Actor      string               `json:"actor,omitempty"`
	ActorID    string               `json:"actor_id,omitempty"`
	ResourceID string               `json:"resource_id,omitempty"`
	Allowed    bool                 `json:"allowed"`
	Reason     pdp_model.ReasonCode `json:"reason"`
	Kind       model.LogKind        `json:"kind"`
	Request    RequestMetadata      `json:"request"`
}
