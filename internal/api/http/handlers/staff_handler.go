package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/telepredict/internal/api/dto"
	"github.com/spec-kit/telepredict/internal/auth"
	"github.com/spec-kit/telepredict/internal/service"
	"github.com/spec-kit/telepredict/internal/workflow"
	"github.com/spec-kit/telepredict/pkg/util"
)

// StaffHandler exposes staff login and the dataset endpoints.
type StaffHandler struct {
	authService  *service.AuthService
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService, staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{authService: authService, staffService: staffService}
}

// Login handles POST /api/staff/login/.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgBadPayload)
	}
	token, err := h.authService.LoginStaff(c.UserContext(), req.StaffID, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(dto.TokenResponse{Token: token})
}

// Upload handles POST /api/staff/upload/ with a multipart "file" field.
func (h *StaffHandler) Upload(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	header, err := c.FormFile("file")
	if err != nil {
		return util.NewValidationError("No file was submitted.", nil)
	}
	f, err := header.Open()
	if err != nil {
		return util.NewInternalError(err)
	}
	defer f.Close()

	ds, err := h.staffService.Upload(c.UserContext(), principal.Staff.StaffID, header.Filename, f)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.UploadResponse{
		UploadID:  ds.ID,
		Columns:   ds.Columns,
		Preview:   service.Preview(ds, service.PreviewRows),
		TotalRows: len(ds.Rows),
		Filename:  ds.Filename,
	})
}

// Predict handles POST /api/staff/predict/.
func (h *StaffHandler) Predict(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	var req dto.PredictRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, msgBadPayload)
	}
	if req.UploadID <= 0 {
		return util.NewValidationError("upload_id is required", nil)
	}
	res, err := h.staffService.Predict(c.UserContext(), principal.Staff.StaffID, req.UploadID)
	if err != nil {
		return err
	}
	return c.JSON(dto.PredictResponse{Results: res.Results, Summary: res.Summary})
}

// History handles GET /api/staff/history/.
func (h *StaffHandler) History(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	items, err := h.staffService.History(c.UserContext(), principal.Staff.StaffID)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// Export handles GET /api/staff/export/:upload_id/.
func (h *StaffHandler) Export(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	uploadID, err := strconv.Atoi(c.Params("upload_id"))
	if err != nil || uploadID <= 0 {
		return util.NewNotFound("upload", nil)
	}
	data, err := h.staffService.Export(c.UserContext(), principal.Staff.StaffID, uploadID)
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+workflow.ExportFilename(uploadID)+`"`)
	return c.Send(data)
}
