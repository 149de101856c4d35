package account

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/internal/quota"
	"github.com/spec-kit/telepredict/pkg/util"
)

const msgFeedbackScore = "Feedback score must be an integer between 1 and 5"

// CompanyRemote is the part of the service an organization uses.
type CompanyRemote interface {
	Profile(ctx context.Context) (dto.ProfileResponse, error)
	AddStaff(ctx context.Context, req dto.AddStaffRequest) (dto.StaffCreatedResponse, error)
	Feedback(ctx context.Context, req dto.FeedbackRequest) (dto.FeedbackCreatedResponse, error)
}

// CompanyFlow is the organization dashboard.
type CompanyFlow struct {
	remote CompanyRemote
	logger *zap.Logger
}

// NewCompanyFlow builds the flow.
func NewCompanyFlow(remote CompanyRemote, logger *zap.Logger) *CompanyFlow {
	return &CompanyFlow{remote: remote, logger: observability.OrNop(logger).Named("account")}
}

// Profile loads the organization with its staff, subscriptions and feedback.
func (f *CompanyFlow) Profile(ctx context.Context) (dto.ProfileResponse, error) {
	return f.remote.Profile(ctx)
}

// AddStaff checks the seat limit of the first subscription against the current staff
// list, creates the account and returns the refreshed profile. The service may still
// refuse a request the local check allowed.
func (f *CompanyFlow) AddStaff(ctx context.Context, req dto.AddStaffRequest) (dto.ProfileResponse, error) {
	profile, err := f.remote.Profile(ctx)
	if err != nil {
		return dto.ProfileResponse{}, err
	}
	if len(profile.Subscriptions) > 0 {
		sub := profile.Subscriptions[0].ToDomain()
		if d := quota.Evaluate(sub, len(profile.StaffMembers)); !d.Allow {
			f.logger.Info("seat limit reached", zap.String("plan", string(sub.PlanType)), zap.Int("staff", len(profile.StaffMembers)))
			return profile, util.NewQuotaExceeded(d.Reason, map[string]any{
				"max_staff_allowed":   *sub.MaxStaffAllowed,
				"current_staff_count": len(profile.StaffMembers),
			})
		}
	}
	if _, err := f.remote.AddStaff(ctx, req); err != nil {
		return profile, err
	}
	return f.remote.Profile(ctx)
}

// SubmitFeedback sends a satisfaction score between 1 and 5.
func (f *CompanyFlow) SubmitFeedback(ctx context.Context, score int, complaints string) (dto.FeedbackCreatedResponse, error) {
	if score < 1 || score > 5 {
		return dto.FeedbackCreatedResponse{}, util.NewValidationError(msgFeedbackScore, nil)
	}
	return f.remote.Feedback(ctx, dto.FeedbackRequest{FeedbackScore: score, ClientComplaints: complaints})
}
