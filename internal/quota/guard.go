// Package quota holds the local seat-limit pre-flight check. The remote service
// remains the enforcement point; a local Allow does not guarantee acceptance.
package quota

import (
	"fmt"

	"github.com/spec-kit/telepredict/internal/domain"
)

// Decision is the outcome of Evaluate. Reason is set only when Allow is false.
type Decision struct {
	Allow  bool
	Reason string
}

// Evaluate denies iff the subscription has a seat limit and currentCount has reached it.
func Evaluate(sub domain.Subscription, currentCount int) Decision {
	if sub.MaxStaffAllowed == nil {
		return Decision{Allow: true}
	}
	limit := *sub.MaxStaffAllowed
	if currentCount < limit {
		return Decision{Allow: true}
	}
	plan := string(sub.PlanType)
	if plan == "" {
		plan = "current"
	}
	return Decision{
		Reason: fmt.Sprintf("Cannot add more staff. Your %s plan allows maximum %d staff members.", plan, limit),
	}
}
