// Package auth verifies the bearer tokens issued by the identity provider
// and turns them into a models.Identity.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
	"github.com/dmitrijs2005/payslips/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the standard claims plus the caller's employee id and role.
type Claims struct {
	jwt.RegisteredClaims
	EmployeeID int64  `json:"employee_id,omitempty"`
	Role       string `json:"role"`
}

// GenerateToken signs an HS256 token for who. The service itself only
// verifies tokens; this is used by tests and the local token tool.
func GenerateToken(who models.Identity, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   who.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		EmployeeID: who.EmployeeID,
		Role:       string(who.Role),
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseIdentity verifies tokenString and extracts the identity it asserts.
func ParseIdentity(tokenString string, secretKey []byte) (models.Identity, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, common.ErrTokenExpired
		}
		return models.Identity{}, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return models.Identity{}, common.ErrInvalidToken
	}

	who := models.Identity{
		Subject:    claims.Subject,
		EmployeeID: claims.EmployeeID,
		Role:       models.Role(claims.Role),
	}
	if !who.Role.Valid() {
		return models.Identity{}, fmt.Errorf("%w: unknown role %q", common.ErrInvalidToken, claims.Role)
	}
	if who.Role == models.RoleEmployee && who.EmployeeID <= 0 {
		return models.Identity{}, fmt.Errorf("%w: employee token without employee_id", common.ErrInvalidToken)
	}

	return who, nil
}
