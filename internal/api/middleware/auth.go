package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/market-ledger/pkg/apperr"
	"github.com/d60-Lab/market-ledger/pkg/response"
)

const (
	ctxUserID = "auth.user_id"
	ctxRole   = "auth.role"

	RoleSeller = "seller"
	RoleAdmin  = "admin"

	InternalKeyHeader = "X-Internal-Key"
)

// Claims 访问令牌载荷：sub 为用户 ID，role 为角色
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token; the server only verifies, tools and tests issue.
func IssueToken(secret, issuer, userID, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// JWTAuth verifies the bearer token and stores subject and role on the context.
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	key := []byte(secret)
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)

	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			response.Abort(c, apperr.Unauthorized("missing_token", "bearer token required"))
			return
		}
		var claims Claims
		_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) { return key, nil })
		if err != nil {
			code := "invalid_token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				code = "token_expired"
			}
			response.Abort(c, apperr.Unauthorized(code, "invalid or expired token"))
			return
		}
		if claims.Subject == "" {
			response.Abort(c, apperr.Unauthorized("invalid_token", "token has no subject"))
			return
		}
		c.Set(ctxUserID, claims.Subject)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RequireRole admits callers whose role is one of roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		response.Abort(c, apperr.AccessDenied("role_required", "this endpoint requires role %s", strings.Join(roles, " or ")))
	}
}

// InternalKey admits callers presenting the shared key whose bcrypt hash is
// configured. An empty hash closes the internal routes.
func InternalKey(keyHash string) gin.HandlerFunc {
	hash := []byte(keyHash)
	return func(c *gin.Context) {
		key := c.GetHeader(InternalKeyHeader)
		if len(hash) == 0 || key == "" || bcrypt.CompareHashAndPassword(hash, []byte(key)) != nil {
			response.Abort(c, apperr.Unauthorized("invalid_internal_key", "internal key required"))
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

func Role(c *gin.Context) string { return c.GetString(ctxRole) }
