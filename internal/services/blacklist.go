package services

import (
	"context"
	"time"
)

const blacklistPrefix = "blacklist:"

// TokenBlacklist хранит отозванные при выходе токены до истечения их срока
type TokenBlacklist interface {
	Revoke(ctx context.Context, token string, ttl time.Duration) error
	Revoked(ctx context.Context, token string) (bool, error)
}

type Blacklist struct {
	kv KeyValue
}

func NewBlacklist(kv KeyValue) *Blacklist {
	return &Blacklist{kv: kv}
}

func (b *Blacklist) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	// Уже просроченный токен отзывать незачем
	if ttl <= 0 {
		return nil
	}
	return b.kv.Set(ctx, blacklistPrefix+token, "1", ttl)
}

func (b *Blacklist) Revoked(ctx context.Context, token string) (bool, error) {
	return b.kv.Exists(ctx, blacklistPrefix+token)
}
