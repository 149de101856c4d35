package dto

import (
	"time"

	"github.com/spec-kit/telepredict/internal/domain"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// ClientInfo describes the organization in a profile.
type ClientInfo struct {
	CompanyID        string `json:"company_id"`
	CompanyName      string `json:"company_name"`
	CompanyEmail     string `json:"company_email"`
	CompanyAddress   string `json:"company_address"`
	CompanyContactNo string `json:"company_contact_no"`
}

// StaffMemberResponse is one staff entry of a profile.
type StaffMemberResponse struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
}

// SubscriptionResponse is one subscription entry of a profile.
type SubscriptionResponse struct {
	SubscriptionID    int     `json:"subscription_id"`
	PlanType          string  `json:"plan_type"`
	MaxStaffAllowed   *int    `json:"max_staff_allowed"`
	CurrentStaffCount int     `json:"current_staff_count"`
	MonthlyCharges    float64 `json:"monthly_charges"`
	TotalCharges      float64 `json:"total_charges"`
	StartDate         string  `json:"start_date"`
	EndDate           string  `json:"end_date"`
	Active            bool    `json:"active"`
}

// FeedbackResponse is one feedback entry.
type FeedbackResponse struct {
	FeedbackID       int    `json:"feedback_id"`
	FeedbackDate     string `json:"feedback_date"`
	FeedbackScore    int    `json:"feedback_score"`
	ClientComplaints string `json:"client_complaints"`
}

// ProfileResponse is the organization dashboard payload.
type ProfileResponse struct {
	ClientInfo      ClientInfo             `json:"client_info"`
	StaffMembers    []StaffMemberResponse  `json:"staff_members"`
	Subscriptions   []SubscriptionResponse `json:"subscriptions"`
	FeedbackHistory []FeedbackResponse     `json:"feedback_history"`
}

// FeedbackRequest payload for a satisfaction entry.
type FeedbackRequest struct {
	FeedbackScore    int    `json:"feedback_score"`
	ClientComplaints string `json:"client_complaints"`
}

// FeedbackCreatedResponse acknowledges a feedback submission.
type FeedbackCreatedResponse struct {
	Message  string           `json:"message"`
	Feedback FeedbackResponse `json:"feedback"`
}

// StaffCreatedResponse acknowledges a new staff account.
type StaffCreatedResponse struct {
	Message string              `json:"message"`
	Staff   StaffMemberResponse `json:"staff"`
}

// ToDomain converts the wire subscription. Unparseable dates stay zero.
func (s SubscriptionResponse) ToDomain() domain.Subscription {
	start, _ := time.Parse(DateLayout, s.StartDate)
	end, _ := time.Parse(DateLayout, s.EndDate)
	return domain.Subscription{
		ID:                s.SubscriptionID,
		PlanType:          domain.PlanType(s.PlanType),
		MaxStaffAllowed:   s.MaxStaffAllowed,
		CurrentStaffCount: s.CurrentStaffCount,
		MonthlyCharges:    s.MonthlyCharges,
		TotalCharges:      s.TotalCharges,
		StartDate:         start,
		EndDate:           end,
		Active:            s.Active,
	}
}

// NewSubscriptionResponse converts a stored subscription for the wire.
func NewSubscriptionResponse(s domain.Subscription) SubscriptionResponse {
	return SubscriptionResponse{
		SubscriptionID:    s.ID,
		PlanType:          string(s.PlanType),
		MaxStaffAllowed:   s.MaxStaffAllowed,
		CurrentStaffCount: s.CurrentStaffCount,
		MonthlyCharges:    s.MonthlyCharges,
		TotalCharges:      s.TotalCharges,
		StartDate:         s.StartDate.Format(DateLayout),
		EndDate:           s.EndDate.Format(DateLayout),
		Active:            s.Active,
	}
}

// NewFeedbackResponse converts a stored feedback entry for the wire.
func NewFeedbackResponse(f domain.Feedback) FeedbackResponse {
	return FeedbackResponse{
		FeedbackID:       f.ID,
		FeedbackDate:     f.Date.Format(DateLayout),
		FeedbackScore:    f.Score,
		ClientComplaints: f.Complaints,
	}
}
