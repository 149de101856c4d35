package service

import (
	"context"
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/config"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/events"
	"github.com/spec-kit/telepredict/internal/repository"
	"github.com/spec-kit/telepredict/pkg/util"
)

const (
	msgBlank            = "This field may not be blank."
	msgInvalidEmail     = "Enter a valid email address."
	msgPasswordMismatch = "Password fields didn't match."
	msgInvalidCreds     = "Invalid credentials"
	maxContactNoLength  = 13
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	clients    repository.ClientRepository
	staff      repository.StaffRepository
	subs       repository.SubscriptionRepository
	dispatcher events.Dispatcher
	tokenMgr   *auth.TokenManager
	bcryptCost int
	now        func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	ClientRepo       repository.ClientRepository
	StaffRepo        repository.StaffRepository
	SubscriptionRepo repository.SubscriptionRepository
	Dispatcher       events.Dispatcher
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		clients:    deps.ClientRepo,
		staff:      deps.StaffRepo,
		subs:       deps.SubscriptionRepo,
		dispatcher: deps.Dispatcher,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

// TokenManager exposes the token manager for middleware wiring.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RegisterClientInput is the organization sign-up form.
type RegisterClientInput struct {
	CompanyID      string
	CompanyName    string
	CompanyAddress string
	ContactNo      string
	Email          string
	Password       string
	Password2      string
	PlanType       domain.PlanType
}

// RegisterClient creates an organization and its first, active subscription.
func (s *AuthService) RegisterClient(ctx context.Context, in RegisterClientInput) (*domain.Client, error) {
	fields := fieldErrors{}
	fields.required("company_id", in.CompanyID)
	fields.required("company_name", in.CompanyName)
	fields.required("company_email", in.Email)
	fields.required("password", in.Password)
	fields.required("password2", in.Password2)
	if in.CompanyID != "" {
		if _, err := strconv.Atoi(in.CompanyID); err != nil {
			fields.add("company_id", "A valid integer is required.")
		}
	}
	if len(in.ContactNo) > maxContactNoLength {
		fields.add("company_contact_no", "Ensure this field has no more than 13 characters.")
	}
	fields.email("company_email", in.Email)
	if !in.PlanType.Valid() {
		fields.add("plan_type", "\""+string(in.PlanType)+"\" is not a valid choice.")
	}
	if in.Password != "" && in.Password2 != "" && in.Password != in.Password2 {
		fields.add("password", msgPasswordMismatch)
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	client := &domain.Client{
		CompanyID:      in.CompanyID,
		CompanyName:    in.CompanyName,
		CompanyAddress: in.CompanyAddress,
		ContactNo:      in.ContactNo,
		Email:          in.Email,
		PasswordHash:   hash,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, util.NewFieldValidationError("", map[string][]string{
				"company_id": {"client with this company id already exists."},
			})
		}
		return nil, util.NewInternalError(err)
	}

	sub := NewSubscription(in.PlanType, s.now())
	if err := s.subs.Create(ctx, client.CompanyID, &sub); err != nil {
		return nil, util.NewInternalError(err)
	}

	publish(ctx, s.dispatcher, events.EventClientRegistered, client.CompanyID, map[string]any{
		"plan_type": string(in.PlanType),
	})
	return client, nil
}

// NewSubscription prices a plan starting at start.
func NewSubscription(plan domain.PlanType, start time.Time) domain.Subscription {
	start = start.UTC().Truncate(24 * time.Hour)
	months := plan.DurationMonths()
	monthly := plan.MonthlyRate()
	return domain.Subscription{
		PlanType:        plan,
		MaxStaffAllowed: plan.MaxStaff(),
		MonthlyCharges:  monthly,
		TotalCharges:    monthly * float64(months),
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 30*months),
		Active:          true,
	}
}

// LoginClient authenticates an organization and returns its token.
func (s *AuthService) LoginClient(ctx context.Context, companyID, password string) (string, error) {
	fields := fieldErrors{}
	fields.required("company_id", companyID)
	fields.required("password", password)
	if err := fields.err(); err != nil {
		return "", err
	}

	client, err := s.clients.GetByID(ctx, companyID)
	if err != nil {
		return "", loginError(err)
	}
	if err := auth.ComparePassword(client.PasswordHash, password); err != nil {
		return "", util.NewUnauthorized(msgInvalidCreds)
	}
	token, _, err := s.tokenMgr.GenerateToken(auth.Identity{
		Role:        domain.RoleClient,
		SubjectID:   client.CompanyID,
		CompanyName: client.CompanyName,
	})
	if err != nil {
		return "", util.NewInternalError(err)
	}
	return token, nil
}

// LoginStaff authenticates a staff member and returns a role-bearing token.
func (s *AuthService) LoginStaff(ctx context.Context, staffID, password string) (string, error) {
	fields := fieldErrors{}
	fields.required("staff_id", staffID)
	fields.required("password", password)
	if err := fields.err(); err != nil {
		return "", err
	}

	staff, err := s.staff.GetByID(ctx, staffID)
	if err != nil {
		return "", loginError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return "", util.NewUnauthorized(msgInvalidCreds)
	}
	token, _, err := s.tokenMgr.GenerateToken(auth.Identity{
		Role:      domain.RoleStaff,
		SubjectID: staff.StaffID,
		Name:      staff.Name,
	})
	if err != nil {
		return "", util.NewInternalError(err)
	}
	return token, nil
}

func loginError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return util.NewUnauthorized(msgInvalidCreds)
	}
	return util.NewInternalError(err)
}

// fieldErrors collects per-field messages the way the service reports them.
type fieldErrors map[string][]string

func (f fieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

func (f fieldErrors) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(field, msgBlank)
	}
}

func (f fieldErrors) email(field, value string) {
	if value == "" {
		return
	}
	if _, err := mail.ParseAddress(value); err != nil {
		f.add(field, msgInvalidEmail)
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return util.NewFieldValidationError("", map[string][]string(f))
}

func publish(ctx context.Context, d events.Dispatcher, t events.EventType, subject string, payload map[string]any) {
	if d == nil {
		return
	}
	_ = d.Publish(ctx, events.Event{Type: t, Subject: subject, Payload: payload, Timestamp: time.Now().UTC()})
}
