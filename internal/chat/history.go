package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
	DefaultSearchLimit  = 20
	MinSearchTermLength = 2
)

// Cursor — граница пагинации: id сообщения или момент времени
type Cursor struct {
	MessageID *uuid.UUID
	Time      *time.Time
}

func (c Cursor) IsZero() bool {
	return c.MessageID == nil && c.Time == nil
}

// ParseCursor принимает UUID сообщения или время в RFC 3339
func ParseCursor(raw string) (Cursor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Cursor{}, nil
	}
	if id, err := uuid.Parse(raw); err == nil {
		return Cursor{MessageID: &id}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t = t.UTC()
		return Cursor{Time: &t}, nil
	}
	return Cursor{}, ErrInvalidCursor
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// ListRecent возвращает страницу истории в хронологическом порядке и признак наличия более старых сообщений
func (s *Service) ListRecent(ctx context.Context, id Identity, courseID uuid.UUID, limit int, before Cursor) ([]MessageView, bool, error) {
	if _, err := s.authorize(ctx, id, courseID); err != nil {
		return nil, false, err
	}

	limit = clampLimit(limit, DefaultHistoryLimit)
	q := HistoryQuery{CourseID: courseID, Limit: limit + 1}

	switch {
	case before.MessageID != nil:
		anchor, err := s.store.GetMessage(ctx, *before.MessageID)
		if err != nil {
			if errors.Is(err, ErrMessageNotFound) {
				return nil, false, ErrInvalidCursor
			}
			return nil, false, s.fail("load cursor message", err)
		}
		if anchor.CourseID != courseID {
			return nil, false, ErrInvalidCursor
		}
		q.Before = &anchor.CreatedAt
		q.BeforeID = &anchor.ID
	case before.Time != nil:
		q.Before = before.Time
	}

	messages, err := s.store.RecentMessages(ctx, q)
	if err != nil {
		return nil, false, s.fail("list recent messages", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}
	reverse(messages)
	return NewMessageViews(messages), hasMore, nil
}

// Search — регистронезависимый поиск подстроки, новые сообщения первыми
func (s *Service) Search(ctx context.Context, id Identity, courseID uuid.UUID, term string, limit int) ([]MessageView, error) {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchTermLength {
		return nil, ErrSearchTermTooShort
	}
	if _, err := s.authorize(ctx, id, courseID); err != nil {
		return nil, err
	}

	messages, err := s.store.SearchMessages(ctx, courseID, term, clampLimit(limit, DefaultSearchLimit))
	if err != nil {
		return nil, s.fail("search messages", err)
	}
	return NewMessageViews(messages), nil
}

func (s *Service) UnreadCount(ctx context.Context, id Identity, courseID uuid.UUID) (int64, error) {
	if _, err := s.authorize(ctx, id, courseID); err != nil {
		return 0, err
	}
	count, err := s.store.CountUnread(ctx, courseID, id.UserID)
	if err != nil {
		return 0, s.fail("count unread", err)
	}
	return count, nil
}
