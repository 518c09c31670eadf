// retention/policy.go
package retention

import (
	"time"

	"github.com/gatewarden/gatewarden/model"
)

// Cutoff computes the purge boundary for a retention window: records older
// than the returned time are deleted.
//
// The sentinel model.RetainThroughNextYear means "keep through the end of
// the following calendar year": the boundary is January 1st of last year,
// UTC, so anything from two or more calendar years back is purged.
func Cutoff(days int, now time.Time) time.Time {
	if days == model.RetainThroughNextYear {
		return time.Date(now.UTC().Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
	}
	return now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
}
