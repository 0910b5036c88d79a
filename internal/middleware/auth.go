package middleware

import (
	"strings"

	"github.com/eaglebank/swiftpay/internal/access"
	"github.com/eaglebank/swiftpay/internal/apperr"
	"github.com/eaglebank/swiftpay/internal/models"
	"github.com/eaglebank/swiftpay/internal/token"
	"github.com/gin-gonic/gin"
)

const (
	userIDKey = "userId"
	roleKey   = "role"
)

type TokenVerifier interface {
	Verify(tokenString string) (*token.Claims, error)
}

// Guard authenticates bearer tokens and enforces the access policy.
type Guard struct {
	verifier TokenVerifier
	policy   access.Policy
}

func NewGuard(verifier TokenVerifier, policy access.Policy) *Guard {
	return &Guard{verifier: verifier, policy: policy}
}

// Authenticate verifies the bearer token and exposes the account id and
// role to downstream handlers.
func (g *Guard) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			RespondWithAppError(c, apperr.ErrMissingToken)
			return
		}

		claims, err := g.verifier.Verify(tokenString)
		if err != nil {
			RespondWithAppError(c, err)
			return
		}

		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, claims.Role)
		c.Next()
	}
}

// Require rejects authenticated callers whose role may not perform op.
func (g *Guard) Require(op access.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			RespondWithAppError(c, apperr.ErrMissingToken)
			return
		}
		if err := g.policy.Authorize(role, op); err != nil {
			RespondWithAppError(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return "", false
	}
	id, ok := userID.(string)
	return id, ok
}

func GetRole(c *gin.Context) (models.Role, bool) {
	role, exists := c.Get(roleKey)
	if !exists {
		return "", false
	}
	r, ok := role.(models.Role)
	return r, ok
}
