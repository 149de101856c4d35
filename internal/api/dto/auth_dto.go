package dto

// ClientLoginRequest payload for organization login.
type ClientLoginRequest struct {
	CompanyID string `json:"company_id"`
	Password  string `json:"password"`
}

// StaffLoginRequest payload for staff login.
type StaffLoginRequest struct {
	StaffID  string `json:"staff_id"`
	Password string `json:"password"`
}

// TokenResponse is returned by both login endpoints.
type TokenResponse struct {
	Token string `json:"token"`
}

// ClientRegisterRequest payload for organization sign-up.
type ClientRegisterRequest struct {
	CompanyID        string `json:"company_id"`
	CompanyName      string `json:"company_name"`
	CompanyAddress   string `json:"company_address"`
	CompanyContactNo string `json:"company_contact_no"`
	CompanyEmail     string `json:"company_email"`
	Password         string `json:"password"`
	Password2        string `json:"password2"`
	PlanType         string `json:"plan_type"`
}

// AddStaffRequest payload for creating a staff account under the caller's organization.
type AddStaffRequest struct {
	StaffID   string `json:"staff_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
}

// MessageResponse is the generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// DetailResponse is the single-message error body.
type DetailResponse struct {
	Detail string `json:"detail"`
}
