package domain

// StaffMember is an individual account owned by a client organization.
type StaffMember struct {
	StaffID      string
	CompanyID    string
	Name         string
	Email        string
	PasswordHash string
}
