package auth

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/telepredict/internal/domain"
)

// TokenManager handles issuing and validating JWT tokens for the stand-in service.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttlMinutes int) *TokenManager {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &TokenManager{secret: []byte(secret), ttl: time.Duration(ttlMinutes) * time.Minute}
}

// FlexibleID accepts either a JSON string or a JSON number.
type FlexibleID string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexibleID) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var out string
		if err := json.Unmarshal(b, &out); err != nil {
			return err
		}
		*f = FlexibleID(out)
		return nil
	}
	if _, err := strconv.ParseFloat(s, 64); err != nil {
		return errors.New("company_id must be a string or number")
	}
	*f = FlexibleID(s)
	return nil
}

// Claims describes the JWT payload.
type Claims struct {
	UserType    domain.Role `json:"user_type,omitempty"`
	Name        string      `json:"name,omitempty"`
	CompanyName string      `json:"company_name,omitempty"`
	StaffID     string      `json:"staff_id,omitempty"`
	CompanyID   FlexibleID  `json:"company_id,omitempty"`
	jwt.RegisteredClaims
}

// SubjectID picks the most specific identifier carried by the token.
func (c *Claims) SubjectID() string {
	switch {
	case c.Subject != "":
		return c.Subject
	case c.StaffID != "":
		return c.StaffID
	default:
		return string(c.CompanyID)
	}
}

// Identity is what a token is issued for.
type Identity struct {
	Role        domain.Role
	SubjectID   string
	Name        string
	CompanyName string
}

// GenerateToken builds and signs a JWT for the subject.
func (tm *TokenManager) GenerateToken(id Identity) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(tm.ttl)
	claims := &Claims{
		UserType: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.SubjectID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	switch id.Role {
	case domain.RoleClient:
		claims.CompanyID = FlexibleID(id.SubjectID)
		claims.CompanyName = id.CompanyName
	case domain.RoleStaff:
		claims.StaffID = id.SubjectID
		claims.Name = id.Name
	default:
		return "", time.Time{}, errors.New("unknown role")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}
