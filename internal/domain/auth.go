package domain

// Role differentiates the two principal kinds.
type Role string

const (
	RoleClient Role = "client"
	RoleStaff  Role = "staff"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleStaff
}

// Session keys in the shared credential store. They are written and cleared as a unit.
const (
	KeyToken    = "token"
	KeyUserType = "userType"
	KeyUserID   = "userId"
	KeyUsername = "username"
)

// SessionKeys lists every key owned by the session.
var SessionKeys = []string{KeyToken, KeyUserType, KeyUserID, KeyUsername}

// IsSessionKey reports whether key belongs to the session.
func IsSessionKey(key string) bool {
	for _, k := range SessionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// SessionState is the in-memory authentication state of one client context.
type SessionState struct {
	IsAuthenticated bool
	Role            Role
	DisplayName     string
}

// Anonymous is the unauthenticated state.
func Anonymous() SessionState {
	return SessionState{}
}

// Authenticated builds an authenticated state.
func Authenticated(role Role, displayName string) SessionState {
	return SessionState{IsAuthenticated: true, Role: role, DisplayName: displayName}
}

func (s SessionState) String() string {
	if !s.IsAuthenticated {
		return "Anonymous"
	}
	return "Authenticated(" + string(s.Role) + ", " + s.DisplayName + ")"
}
