package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"parkingspace/internal/domain"
)

const (
	AuthorizationHeaderKey  = "Authorization"
	AuthorizationTypeBearer = "Bearer"
	ActorKey                = "actor"
)

// TokenValidator resolves a bearer token to the caller.
type TokenValidator interface {
	ValidateToken(tokenString string) (*domain.Actor, error)
}

type AuthMiddleware struct {
	validator TokenValidator
	logger    *logrus.Logger
}

func NewAuthMiddleware(validator TokenValidator, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{validator: validator, logger: logger}
}

// Authenticate requires a valid "Authorization: Bearer" header.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return m.authenticate(false)
}

// AuthenticateWebSocket also accepts ?token= since browsers cannot set headers on WebSocket upgrades.
func (m *AuthMiddleware) AuthenticateWebSocket() gin.HandlerFunc {
	return m.authenticate(true)
}

func (m *AuthMiddleware) authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authHeader := c.GetHeader(AuthorizationHeaderKey); authHeader != "" {
			fields := strings.Fields(authHeader)
			if len(fields) < 2 || !strings.EqualFold(fields[0], AuthorizationTypeBearer) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				return
			}
			token = fields[1]
		} else if allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		actor, err := m.validator.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token is invalid or expired", "details": err.Error()})
			return
		}

		c.Set(ActorKey, *actor)
		c.Next()
	}
}

// AuthorizeRole lets the request through only for the listed roles.
func (m *AuthMiddleware) AuthorizeRole(requiredRoles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			m.logger.Warn("AuthorizeRole: no actor in context, Authenticate must run first")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}

		for _, role := range requiredRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		m.logger.WithFields(logrus.Fields{
			"user_id":  actor.UserID,
			"role":     actor.Role,
			"required": requiredRoles,
			"path":     c.FullPath(),
		}).Info("AuthorizeRole: access denied")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied for this role"})
	}
}

// RequireStaff admits admins and staff.
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return m.AuthorizeRole(domain.RoleAdmin, domain.RoleStaff)
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, exists := c.Get(ActorKey)
	if !exists {
		return domain.Actor{}, false
	}
	actor, ok := v.(domain.Actor)
	return actor, ok
}
