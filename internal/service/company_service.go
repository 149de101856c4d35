package service

import (
	"context"
	"errors"
	"time"

	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/quota"
	"github.com/spec-kit/telepredict/internal/repository"
	"github.com/spec-kit/telepredict/pkg/util"
)

const (
	msgFeedbackScore    = "Feedback score must be an integer between 1 and 5"
	msgNoSubscription   = "An active subscription is required to add staff."
	msgStaffIDTaken     = "Staff ID already exists"
	maxComplaintsLength = 200
	minFeedbackScore    = 1
	maxFeedbackScore    = 5
)

// CompanyService manages organization profiles, staff seats and feedback.
type CompanyService struct {
	clients    repository.ClientRepository
	staff      repository.StaffRepository
	subs       repository.SubscriptionRepository
	feedback   repository.FeedbackRepository
	dispatcher events.Dispatcher
	bcryptCost int
}

// CompanyDependencies bundles repositories for the company service.
type CompanyDependencies struct {
	ClientRepo       repository.ClientRepository
	StaffRepo        repository.StaffRepository
	SubscriptionRepo repository.SubscriptionRepository
	FeedbackRepo     repository.FeedbackRepository
	Dispatcher       events.Dispatcher
}

// NewCompanyService constructs the service.
func NewCompanyService(cfg config.Config, deps CompanyDependencies) *CompanyService {
	return &CompanyService{
		clients:    deps.ClientRepo,
		staff:      deps.StaffRepo,
		subs:       deps.SubscriptionRepo,
		feedback:   deps.FeedbackRepo,
		dispatcher: deps.Dispatcher,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// Profile is everything the organization dashboard shows.
type Profile struct {
	Client        domain.Client
	Staff         []domain.StaffMember
	Subscriptions []domain.Subscription
	Feedback      []domain.Feedback
}

// Profile loads the organization with its staff, subscriptions and feedback.
func (s *CompanyService) Profile(ctx context.Context, companyID string) (*Profile, error) {
	client, err := s.clients.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, util.NewNotFound("client", nil)
		}
		return nil, util.NewInternalError(err)
	}
	staff, err := s.staff.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	subs, err := s.subs.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	for i := range subs {
		subs[i].CurrentStaffCount = len(staff)
	}
	feedback, err := s.feedback.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	return &Profile{Client: *client, Staff: staff, Subscriptions: subs, Feedback: feedback}, nil
}

// AddStaffInput is the new staff form.
type AddStaffInput struct {
	StaffID   string
	Name      string
	Email     string
	Password  string
	Password2 string
}

// AddStaff creates a staff account when the organization's active plan has a free seat.
func (s *CompanyService) AddStaff(ctx context.Context, companyID string, in AddStaffInput) (*domain.StaffMember, error) {
	fields := fieldErrors{}
	fields.required("staff_id", in.StaffID)
	fields.required("name", in.Name)
	fields.required("email", in.Email)
	fields.required("password", in.Password)
	fields.email("email", in.Email)
	if in.Password2 != "" && in.Password != in.Password2 {
		fields.add("password", msgPasswordMismatch)
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	sub, err := s.activeSubscription(ctx, companyID)
	if err != nil {
		return nil, err
	}
	current, err := s.staff.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	if decision := quota.Evaluate(*sub, len(current)); !decision.Allow {
		return nil, util.NewForbidden(decision.Reason)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	member := &domain.StaffMember{
		StaffID:      in.StaffID,
		CompanyID:    companyID,
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.staff.Create(ctx, member); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, util.NewFieldValidationError("", map[string][]string{"staff_id": {msgStaffIDTaken}})
		}
		return nil, util.NewInternalError(err)
	}

	publish(ctx, s.dispatcher, events.EventStaffAdded, companyID, map[string]any{"staff_id": member.StaffID})
	return member, nil
}

func (s *CompanyService) activeSubscription(ctx context.Context, companyID string) (*domain.Subscription, error) {
	subs, err := s.subs.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	for i := range subs {
		if subs[i].Active {
			return &subs[i], nil
		}
	}
	return nil, util.NewForbidden(msgNoSubscription)
}

// SubmitFeedback records a satisfaction score between 1 and 5.
func (s *CompanyService) SubmitFeedback(ctx context.Context, companyID string, score int, complaints string) (*domain.Feedback, error) {
	if score < minFeedbackScore || score > maxFeedbackScore {
		return nil, util.NewValidationError(msgFeedbackScore, nil)
	}
	if len(complaints) > maxComplaintsLength {
		return nil, util.NewFieldValidationError("", map[string][]string{
			"client_complaints": {"Ensure this field has no more than 200 characters."},
		})
	}
	fb := &domain.Feedback{
		CompanyID:  companyID,
		Date:       time.Now().UTC().Truncate(24 * time.Hour),
		Score:      score,
		Complaints: complaints,
	}
	if err := s.feedback.Create(ctx, fb); err != nil {
		return nil, util.NewInternalError(err)
	}
	publish(ctx, s.dispatcher, events.EventFeedbackReceived, companyID, map[string]any{"score": score})
	return fb, nil
}
