package auth

import (
	"bytes"
	"encoding/json"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/telepredict/internal/domain"
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

// Decode extracts the claims segment of a bearer credential without verifying it.
// Any malformation yields nil. The result is for display only and must never be
// used to make an authorization decision: neither signature nor expiry is checked.
//
// A claim with an unexpected type is left empty; it does not reject the token.
func Decode(token string) *Claims {
	parts := strings.Split(token, ".")
	if len(parts) != 3 || parts[1] == "" {
		return nil
	}
	// Accept both alphabets; the standard one shows up in hand-built tokens.
	seg := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	payload, err := segmentParser.DecodeSegment(seg)
	if err != nil {
		return nil
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || payload[0] != '{' {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}

	claims := &Claims{
		UserType:    domain.Role(stringClaim(raw, "user_type")),
		Name:        stringClaim(raw, "name"),
		CompanyName: stringClaim(raw, "company_name"),
		StaffID:     idClaim(raw, "staff_id"),
		CompanyID:   FlexibleID(idClaim(raw, "company_id")),
	}
	claims.Subject = idClaim(raw, "sub")
	claims.Issuer = stringClaim(raw, "iss")
	claims.ID = stringClaim(raw, "jti")
	claims.ExpiresAt = dateClaim(raw, "exp")
	claims.IssuedAt = dateClaim(raw, "iat")
	claims.NotBefore = dateClaim(raw, "nbf")
	return claims
}

func stringClaim(raw map[string]json.RawMessage, key string) string {
	var s string
	if v, ok := raw[key]; ok && json.Unmarshal(v, &s) == nil {
		return s
	}
	return ""
}

func idClaim(raw map[string]json.RawMessage, key string) string {
	var id FlexibleID
	if v, ok := raw[key]; ok && json.Unmarshal(v, &id) == nil {
		return string(id)
	}
	return ""
}

func dateClaim(raw map[string]json.RawMessage, key string) *jwt.NumericDate {
	v, ok := raw[key]
	if !ok {
		return nil
	}
	var d jwt.NumericDate
	if err := json.Unmarshal(v, &d); err != nil {
		return nil
	}
	return &d
}
