// Package account holds the organization and staff flows of the client: login and
// registration, profile and seats, feedback, history and exports.
package account

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/observability"
	"github.com/spec-kit/telepredict/pkg/util"
)

const (
	msgNoToken          = "Login failed: No token received from server."
	msgPasswordMismatch = "Passwords do not match."
)

// AuthRemote is the part of the service used to log in and sign up.
type AuthRemote interface {
	ClientLogin(ctx context.Context, req dto.ClientLoginRequest) (dto.TokenResponse, error)
	StaffLogin(ctx context.Context, req dto.StaffLoginRequest) (dto.TokenResponse, error)
	Register(ctx context.Context, req dto.ClientRegisterRequest) error
}

// Session is the session of the current context.
type Session interface {
	Login(ctx context.Context, token string, role domain.Role, subjectID, displayName string) error
	Logout(ctx context.Context) error
	ClearAuthorization()
	State() domain.SessionState
}

// AuthFlow logs principals in and out.
type AuthFlow struct {
	remote  AuthRemote
	session Session
	logger  *zap.Logger
}

// NewAuthFlow builds the flow.
func NewAuthFlow(remote AuthRemote, session Session, logger *zap.Logger) *AuthFlow {
	return &AuthFlow{remote: remote, session: session, logger: observability.OrNop(logger).Named("account")}
}

// LoginClient logs an organization in. The display name is the company name carried
// by the token, or the company id.
func (f *AuthFlow) LoginClient(ctx context.Context, companyID, password string) (domain.SessionState, error) {
	resp, err := f.remote.ClientLogin(ctx, dto.ClientLoginRequest{CompanyID: companyID, Password: password})
	if err != nil {
		return f.session.State(), err
	}
	name := companyID
	if claims := auth.Decode(resp.Token); claims != nil && claims.CompanyName != "" {
		name = claims.CompanyName
	}
	return f.establish(ctx, resp.Token, domain.RoleClient, companyID, name)
}

// LoginStaff logs a staff member in. The display name is the staff name carried by
// the token, or the staff id.
func (f *AuthFlow) LoginStaff(ctx context.Context, staffID, password string) (domain.SessionState, error) {
	resp, err := f.remote.StaffLogin(ctx, dto.StaffLoginRequest{StaffID: staffID, Password: password})
	if err != nil {
		return f.session.State(), err
	}
	name := staffID
	if claims := auth.Decode(resp.Token); claims != nil && claims.Name != "" {
		name = claims.Name
	}
	return f.establish(ctx, resp.Token, domain.RoleStaff, staffID, name)
}

func (f *AuthFlow) establish(ctx context.Context, token string, role domain.Role, subjectID, name string) (domain.SessionState, error) {
	if token == "" {
		return f.session.State(), util.NewNetworkError(msgNoToken, 0, nil)
	}
	if err := f.session.Login(ctx, token, role, subjectID, name); err != nil {
		return f.session.State(), err
	}
	f.logger.Info("login", zap.String("role", string(role)), zap.String("subject_id", subjectID))
	return f.session.State(), nil
}

// RegisterInput is the organization sign-up form.
type RegisterInput struct {
	CompanyID      string
	CompanyName    string
	CompanyAddress string
	ContactNo      string
	Email          string
	Password       string
	Password2      string
	PlanType       domain.PlanType
}

// Register signs an organization up. Registration is anonymous, so any cached
// authorization is dropped first.
func (f *AuthFlow) Register(ctx context.Context, in RegisterInput) error {
	if in.Password != in.Password2 {
		return util.NewValidationError(msgPasswordMismatch, nil)
	}
	f.session.ClearAuthorization()
	return f.remote.Register(ctx, dto.ClientRegisterRequest{
		CompanyID:        in.CompanyID,
		CompanyName:      in.CompanyName,
		CompanyAddress:   in.CompanyAddress,
		CompanyContactNo: in.ContactNo,
		CompanyEmail:     in.Email,
		Password:         in.Password,
		Password2:        in.Password2,
		PlanType:         string(in.PlanType),
	})
}

// Logout ends the session in every context.
func (f *AuthFlow) Logout(ctx context.Context) error {
	return f.session.Logout(ctx)
}
