package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"bustix/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	accountIDKey = "accountID"
	userRoleKey  = "userRole"
)

// Auth verifies the HS256 bearer token issued by the auth service and puts
// the caller's account id and role on the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized: token tidak ditemukan",
				"request_id": GetRequestID(c),
			})
			return
		}

		rc, err := ParseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":      "unauthorized: " + err.Error(),
				"request_id": GetRequestID(c),
			})
			return
		}
		c.Set(accountIDKey, rc.AccountID)
		c.Set(userRoleKey, string(rc.Role))
		c.Next()
	}
}

// ParseToken validates tokenString and extracts the caller identity.
func ParseToken(secret []byte, tokenString string) (domain.RequestContext, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.RequestContext{}, err
	}

	accountID := claimString(claims, "account_id")
	if accountID == "" {
		accountID = claimString(claims, "user_id")
	}
	if accountID == "" {
		accountID = claimString(claims, "sub")
	}
	if accountID == "" {
		return domain.RequestContext{}, fmt.Errorf("token has no account id")
	}
	role, ok := domain.ParseRole(claimString(claims, "role"))
	if !ok {
		return domain.RequestContext{}, fmt.Errorf("token has unknown role")
	}
	return domain.RequestContext{AccountID: accountID, Role: role}, nil
}

// claimString accepts string or numeric claims; legacy tokens carry a
// numeric user_id.
func claimString(claims jwt.MapClaims, key string) string {
	switch v := claims[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// SignToken mints a token in the shape Auth accepts. Used by the agent CLI
// for local development and by tests.
func SignToken(secret []byte, accountID string, role domain.Role, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"account_id": accountID,
		"role":       string(role),
		"exp":        time.Now().Add(ttl).Unix(),
	})
	return token.SignedString(secret)
}

// Caller returns the identity stored by Auth.
func Caller(c *gin.Context) domain.RequestContext {
	role, _ := domain.ParseRole(c.GetString(userRoleKey))
	return domain.RequestContext{AccountID: c.GetString(accountIDKey), Role: role}
}
