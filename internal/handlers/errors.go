package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
)

var errInvalidID = &chat.Error{Kind: chat.KindValidation, Code: "invalid_id", Message: "invalid id"}

func statusFor(kind chat.Kind) int {
	switch kind {
	case chat.KindAuthentication:
		return http.StatusUnauthorized
	case chat.KindAccessDenied:
		return http.StatusForbidden
	case chat.KindValidation:
		return http.StatusBadRequest
	case chat.KindNotFound:
		return http.StatusNotFound
	case chat.KindExpired:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError отвечает JSON {error, code} со статусом по виду ошибки
func respondError(c *gin.Context, err error) {
	ce := chat.AsError(err)
	c.AbortWithStatusJSON(statusFor(ce.Kind), gin.H{"error": ce.Message, "code": ce.ErrorCode()})
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, errInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
