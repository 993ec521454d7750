package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/middleware"
	"github.com/thereayou/coursechat/internal/services"
	"github.com/thereayou/coursechat/pkg/auth"
)

// AuthHandler — выход из системы. Токены выдаёт внешний сервис
type AuthHandler struct {
	jwtManager *auth.JWTManager
	blacklist  services.TokenBlacklist
	log        logger.Logger
}

func NewAuthHandler(jwtMgr *auth.JWTManager, blacklist services.TokenBlacklist, log logger.Logger) *AuthHandler {
	return &AuthHandler{jwtManager: jwtMgr, blacklist: blacklist, log: log}
}

// Logout ставит токен в черный список до истечения
func (h *AuthHandler) Logout(c *gin.Context) {
	raw, ok := c.Get(middleware.TokenKey)
	rawToken, _ := raw.(string)
	if !ok || rawToken == "" {
		respondError(c, chat.ErrMissingCredential)
		return
	}

	exp, err := h.jwtManager.Expiry(rawToken)
	if err != nil {
		respondError(c, chat.ErrInvalidCredential)
		return
	}

	if err := h.blacklist.Revoke(c.Request.Context(), rawToken, time.Until(exp)); err != nil {
		h.log.Errorf("logout: revoke token: %v", err)
		respondError(c, chat.ErrInternal)
		return
	}

	c.Status(http.StatusNoContent)
}
