package domain

import "time"

// PlanType enumerates subscription plans.
type PlanType string

const (
	PlanBasic    PlanType = "basic"
	PlanStandard PlanType = "standard"
	PlanPartner  PlanType = "partner"
)

// Valid reports whether p is a known plan.
func (p PlanType) Valid() bool {
	switch p {
	case PlanBasic, PlanStandard, PlanPartner:
		return true
	}
	return false
}

// MaxStaff returns the seat limit of the plan; nil means unlimited.
func (p PlanType) MaxStaff() *int {
	var n int
	switch p {
	case PlanBasic:
		n = 5
	case PlanStandard:
		n = 20
	case PlanPartner:
		return nil
	default:
		n = 0
	}
	return &n
}

// DurationMonths returns the plan duration.
func (p PlanType) DurationMonths() int {
	switch p {
	case PlanBasic:
		return 2
	case PlanStandard:
		return 4
	case PlanPartner:
		return 6
	}
	return 0
}

// MonthlyRate returns the plan price per month.
func (p PlanType) MonthlyRate() float64 {
	switch p {
	case PlanBasic:
		return 100
	case PlanStandard:
		return 250
	case PlanPartner:
		return 500
	}
	return 0
}

// Client is an organization account.
type Client struct {
	CompanyID      string
	CompanyName    string
	CompanyAddress string
	ContactNo      string
	Email          string
	PasswordHash   string
}

// Subscription is read-only input to the quota guard.
type Subscription struct {
	ID                int
	PlanType          PlanType
	MaxStaffAllowed   *int
	CurrentStaffCount int
	MonthlyCharges    float64
	TotalCharges      float64
	StartDate         time.Time
	EndDate           time.Time
	Active            bool
}

// Feedback is a client satisfaction entry.
type Feedback struct {
	ID         int
	CompanyID  string
	Date       time.Time
	Score      int
	Complaints string
}
