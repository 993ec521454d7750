package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/logger"
)

// CachedAccessOracle кэширует ответы оракула членства на короткий TTL.
// Ошибки кэша не ломают запрос: идём в источник
type CachedAccessOracle struct {
	next chat.AccessOracle
	kv   KeyValue
	ttl  time.Duration
	log  logger.Logger
}

var _ chat.AccessOracle = (*CachedAccessOracle)(nil)

func NewCachedAccessOracle(next chat.AccessOracle, kv KeyValue, ttl time.Duration, log logger.Logger) *CachedAccessOracle {
	return &CachedAccessOracle{next: next, kv: kv, ttl: ttl, log: log}
}

func accessKey(userID, courseID uuid.UUID) string {
	return fmt.Sprintf("course_access:%s:%s", courseID, userID)
}

func (o *CachedAccessOracle) GetCourseAccess(ctx context.Context, userID, courseID uuid.UUID) (chat.CourseAccess, error) {
	key := accessKey(userID, courseID)

	raw, err := o.kv.Get(ctx, key)
	switch {
	case err == nil:
		var access chat.CourseAccess
		if err := json.Unmarshal([]byte(raw), &access); err == nil {
			return access, nil
		}
		o.log.Warnf("access cache: corrupt entry %s", key)
	case err != ErrCacheMiss:
		o.log.Warnf("access cache: %v", err)
	}

	access, err := o.next.GetCourseAccess(ctx, userID, courseID)
	if err != nil {
		return chat.CourseAccess{}, err
	}

	if data, err := json.Marshal(access); err == nil {
		if err := o.kv.Set(ctx, key, string(data), o.ttl); err != nil {
			o.log.Warnf("access cache: %v", err)
		}
	}
	return access, nil
}
