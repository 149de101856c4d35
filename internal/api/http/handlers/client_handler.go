package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/domain"
	"github.com/spec-kit/telepredict/internal/service"
	"github.com/spec-kit/telepredict/pkg/util"
)

const msgBadPayload = "JSON parse error"

// ClientHandler exposes organization endpoints.
type ClientHandler struct {
	auth    *service.AuthService
	company *service.CompanyService
}

// NewClientHandler constructs handler.
func NewClientHandler(authService *service.AuthService, companyService *service.CompanyService) *ClientHandler {
	return &ClientHandler{auth: authService, company: companyService}
}

// Register handles POST /api/client/register/.
func (h *ClientHandler) Register(c *fiber.Ctx) error {
	var req dto.ClientRegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgBadPayload)
	}
	client, err := h.auth.RegisterClient(c.UserContext(), service.RegisterClientInput{
		CompanyID:      req.CompanyID,
		CompanyName:    req.CompanyName,
		CompanyAddress: req.CompanyAddress,
		ContactNo:      req.CompanyContactNo,
		Email:          req.CompanyEmail,
		Password:       req.Password,
		Password2:      req.Password2,
		PlanType:       domain.PlanType(req.PlanType),
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(clientInfo(client))
}

// Login handles POST /api/client/login/.
func (h *ClientHandler) Login(c *fiber.Ctx) error {
	var req dto.ClientLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgBadPayload)
	}
	token, err := h.auth.LoginClient(c.UserContext(), req.CompanyID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{Token: token})
}

// AddStaff handles POST /api/client/add-staff/.
func (h *ClientHandler) AddStaff(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.AddStaffRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgBadPayload)
	}
	member, err := h.company.AddStaff(c.UserContext(), principal.Client.CompanyID, service.AddStaffInput{
		StaffID:   req.StaffID,
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Password2: req.Password2,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.StaffCreatedResponse{
		Message: "Staff registered successfully",
		Staff:   staffMember(*member),
	})
}

// Profile handles GET /api/client/profile/.
func (h *ClientHandler) Profile(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	profile, err := h.company.Profile(c.UserContext(), principal.Client.CompanyID)
	if err != nil {
		return err
	}
	resp := dto.ProfileResponse{
		ClientInfo:      clientInfo(&profile.Client),
		StaffMembers:    make([]dto.StaffMemberResponse, 0, len(profile.Staff)),
		Subscriptions:   make([]dto.SubscriptionResponse, 0, len(profile.Subscriptions)),
		FeedbackHistory: make([]dto.FeedbackResponse, 0, len(profile.Feedback)),
	}
	for _, m := range profile.Staff {
		resp.StaffMembers = append(resp.StaffMembers, staffMember(m))
	}
	for _, s := range profile.Subscriptions {
		resp.Subscriptions = append(resp.Subscriptions, dto.NewSubscriptionResponse(s))
	}
	for _, f := range profile.Feedback {
		resp.FeedbackHistory = append(resp.FeedbackHistory, dto.NewFeedbackResponse(f))
	}
	return c.JSON(resp)
}

// Feedback handles POST /api/client/feedback/. Its errors use {"error": ...} bodies.
func (h *ClientHandler) Feedback(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.FeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"error": "Feedback score must be an integer between 1 and 5"})
	}
	fb, err := h.company.SubmitFeedback(c.UserContext(), principal.Client.CompanyID, req.FeedbackScore, req.ClientComplaints)
	if err != nil {
		de := util.ToDomainError(err)
		return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message})
	}
	return c.Status(http.StatusCreated).JSON(dto.FeedbackCreatedResponse{
		Message:  "Feedback submitted successfully",
		Feedback: dto.NewFeedbackResponse(*fb),
	})
}

func clientInfo(client *domain.Client) dto.ClientInfo {
	return dto.ClientInfo{
		CompanyID:        client.CompanyID,
		CompanyName:      client.CompanyName,
		CompanyEmail:     client.Email,
		CompanyAddress:   client.CompanyAddress,
		CompanyContactNo: client.ContactNo,
	}
}

func staffMember(m domain.StaffMember) dto.StaffMemberResponse {
	return dto.StaffMemberResponse{StaffID: m.StaffID, Name: m.Name, Email: m.Email}
}
