package services

import (
	"context"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/pkg/auth"
)

// IdentityVerifier превращает bearer-токен в Identity: подпись и срок проверяет JWTManager,
// отзыв — чёрный список, роль и имя берутся из справочника пользователей
type IdentityVerifier struct {
	jwt       *auth.JWTManager
	users     chat.UserDirectory
	blacklist TokenBlacklist
	log       logger.Logger
}

var _ chat.IdentityVerifier = (*IdentityVerifier)(nil)

// blacklist может быть nil — тогда отзыв токенов не проверяется
func NewIdentityVerifier(jwtManager *auth.JWTManager, users chat.UserDirectory, blacklist TokenBlacklist, log logger.Logger) *IdentityVerifier {
	return &IdentityVerifier{jwt: jwtManager, users: users, blacklist: blacklist, log: log}
}

func (v *IdentityVerifier) VerifyCredential(ctx context.Context, token string) (chat.Identity, error) {
	if token == "" {
		return chat.Identity{}, chat.ErrMissingCredential
	}

	if v.blacklist != nil {
		revoked, err := v.blacklist.Revoked(ctx, token)
		if err != nil {
			v.log.Errorf("identity: blacklist lookup: %v", err)
			return chat.Identity{}, chat.ErrInternal
		}
		if revoked {
			return chat.Identity{}, chat.ErrInvalidCredential
		}
	}

	claims, err := v.jwt.Verify(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return chat.Identity{}, chat.ErrExpiredCredential
		}
		return chat.Identity{}, chat.ErrInvalidCredential
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return chat.Identity{}, chat.ErrInvalidCredential
	}

	user, err := v.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, chat.ErrUserNotFound) {
			return chat.Identity{}, chat.ErrUnknownUser
		}
		v.log.Errorf("identity: get user %s: %v", userID, err)
		return chat.Identity{}, chat.ErrInternal
	}
	if !user.IsActive {
		return chat.Identity{}, chat.ErrUnknownUser
	}

	return chat.Identity{
		UserID:      user.ID,
		Role:        user.Role,
		DisplayName: user.Name,
	}, nil
}
