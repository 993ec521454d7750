package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/pkg/auth"
)

const (
	IdentityKey = "identity"
	TokenKey    = "token"
)

// DefaultAuthTimeout ограничивает проверку токена, если не задано иное
const DefaultAuthTimeout = 10 * time.Second

func abortWithAuthError(c *gin.Context, err error) {
	ce := chat.AsError(err)
	status := http.StatusUnauthorized
	if ce.Kind == chat.KindInternal {
		status = http.StatusInternalServerError
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ce.Message, "code": ce.ErrorCode()})
}

func authenticate(c *gin.Context, verifier chat.IdentityVerifier, timeout time.Duration, token string) bool {
	if timeout <= 0 {
		timeout = DefaultAuthTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	identity, err := verifier.VerifyCredential(ctx, token)
	if err != nil {
		abortWithAuthError(c, err)
		return false
	}

	c.Set(IdentityKey, identity)
	c.Set(TokenKey, token)
	return true
}

// AuthMiddleware проверяет JWT токен из Authorization header
func AuthMiddleware(verifier chat.IdentityVerifier, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractTokenFromHeader(c.Request)
		if err != nil {
			if err == auth.ErrMissingToken {
				abortWithAuthError(c, chat.ErrMissingCredential)
			} else {
				abortWithAuthError(c, chat.ErrInvalidCredential)
			}
			return
		}

		if authenticate(c, verifier, timeout, token) {
			c.Next()
		}
	}
}

// WSAuthMiddleware специальный middleware для WebSocket: токен из ?token= или заголовка.
// При ошибке отвечает 401 до апгрейда соединения
func WSAuthMiddleware(verifier chat.IdentityVerifier, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.ExtractToken(c.Request)
		if err != nil {
			if err == auth.ErrMissingToken {
				abortWithAuthError(c, chat.ErrMissingCredential)
			} else {
				abortWithAuthError(c, chat.ErrInvalidCredential)
			}
			return
		}

		if authenticate(c, verifier, timeout, token) {
			c.Next()
		}
	}
}

// GetIdentity достаёт Identity, сохранённую middleware
func GetIdentity(c *gin.Context) (chat.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return chat.Identity{}, false
	}
	identity, ok := v.(chat.Identity)
	return identity, ok
}
