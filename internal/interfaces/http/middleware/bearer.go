package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pms/billing/internal/infrastructure/backend"
	"github.com/pms/billing/internal/infrastructure/logger"
	"github.com/pms/billing/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const (
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// BearerConfig configures bearer-token forwarding
type BearerConfig struct {
	// Required rejects requests without a token before any backend call
	Required bool
	// SkipPaths are paths that don't require a token
	SkipPaths []string
	// SkipPathPrefixes are path prefixes that don't require a token
	SkipPathPrefixes []string
	Logger           *zap.Logger
}

// BearerToken forwards the caller's bearer token to the backend client.
// The token is checked for shape only; the backend is the authority on its validity.
// When the token is a JWT its subject is attached to the request logger as the
// operator, without verifying the signature.
func BearerToken(cfg BearerConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		for _, skipPath := range cfg.SkipPaths {
			if path == skipPath {
				c.Next()
				return
			}
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		token, ok := extractBearer(c.GetHeader(AuthHeaderKey))
		if !ok {
			if cfg.Required {
				if cfg.Logger != nil {
					cfg.Logger.Debug("Missing bearer token", zap.String("path", path))
				}
				c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(
					dto.ErrCodeUnauthorized,
					"Authentication required",
					getRequestIDFromContext(c),
				))
				return
			}
			c.Next()
			return
		}

		ctx := backend.WithToken(c.Request.Context(), token)
		if operator := tokenSubject(token); operator != "" {
			var reqLog *zap.Logger
			ctx, reqLog = logger.WithOperator(ctx, logger.GetGinLogger(c), operator)
			c.Set("logger", reqLog)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractBearer(header string) (string, bool) {
	if len(header) < len(BearerPrefix) || !strings.EqualFold(header[:len(BearerPrefix)], BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(BearerPrefix):])
	return token, token != ""
}

// tokenSubject returns the "sub" claim of a JWT, or "" for opaque tokens
func tokenSubject(token string) string {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return ""
	}
	return claims.Subject
}
