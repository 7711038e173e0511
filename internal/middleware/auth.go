package middleware

import (
	"net/http"
	"strings"

	"tillpoint/internal/apierror"
	"tillpoint/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey = "claims"
)

// JWTClaims are the custom claims embedded in every access token. Auth
// itself (login, refresh) lives in the identity service; this middleware
// only validates tokens and materializes the actor context.
type JWTClaims struct {
	UserID     string   `json:"user_id"`
	Username   string   `json:"username"`
	Roles      []string `json:"roles"`
	BranchID   string   `json:"branch_id"`
	RegisterID *string  `json:"register_id"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("authentication required"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("invalid or expired token"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// RequireRole rejects requests whose token holds none of the allowed roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		claims, ok := c.MustGet(ClaimsKey).(*JWTClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("insufficient permissions"))
			return
		}
		for _, held := range claims.Roles {
			if allowed[held] {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, apierror.New("insufficient permissions"))
	}
}

// GetClaims is a helper to retrieve typed claims from the Gin context.
func GetClaims(c *gin.Context) *JWTClaims {
	claims, _ := c.MustGet(ClaimsKey).(*JWTClaims)
	return claims
}

// ActorFromClaims builds the service-layer actor context from the token.
// Returns false when the claims do not carry well-formed ids.
func ActorFromClaims(claims *JWTClaims) (service.Actor, bool) {
	operatorID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return service.Actor{}, false
	}
	branchID, err := uuid.Parse(claims.BranchID)
	if err != nil {
		return service.Actor{}, false
	}
	actor := service.Actor{
		OperatorID: operatorID,
		Roles:      claims.Roles,
		BranchID:   branchID,
	}
	if claims.RegisterID != nil {
		if regID, err := uuid.Parse(*claims.RegisterID); err == nil {
			actor.RegisterID = &regID
		}
	}
	return actor, true
}
