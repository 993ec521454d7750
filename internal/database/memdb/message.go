package memdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
)

func (d *DB) CreateMessage(_ context.Context, message *models.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	d.seq++
	stored := *message
	stored.Sender = models.User{}
	stored.ReplyTo = nil
	stored.Reactions = nil
	d.messages[message.ID] = &storedMessage{seq: d.seq, msg: stored}
	return nil
}

func (d *DB) GetMessage(_ context.Context, id uuid.UUID) (*models.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stored, ok := d.messages[id]
	if !ok {
		return nil, chat.ErrMessageNotFound
	}
	m := d.hydrate(stored.msg, true)
	return &m, nil
}

func (d *DB) UpdateMessage(_ context.Context, message *models.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	stored, ok := d.messages[message.ID]
	if !ok {
		return chat.ErrMessageNotFound
	}
	// course_id и created_at не меняются
	stored.msg.Content = message.Content
	stored.msg.AttachmentURL = message.AttachmentURL
	stored.msg.AttachmentName = message.AttachmentName
	stored.msg.IsEdited = message.IsEdited
	stored.msg.EditedAt = message.EditedAt
	stored.msg.IsDeleted = message.IsDeleted
	stored.msg.DeletedAt = message.DeletedAt
	return nil
}

func (d *DB) ToggleReaction(_ context.Context, messageID, userID uuid.UUID, kind models.ReactionKind) ([]models.MessageReaction, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.messages[messageID]; !ok {
		return nil, chat.ErrMessageNotFound
	}
	if d.reactions[messageID] == nil {
		d.reactions[messageID] = make(map[uuid.UUID]models.MessageReaction)
	}

	current := d.reactions[messageID][userID]
	switch next := chat.NextReaction(current.Kind, kind); {
	case next == "":
		delete(d.reactions[messageID], userID)
	case current.Kind == "":
		d.reactions[messageID][userID] = models.MessageReaction{
			MessageID: messageID,
			UserID:    userID,
			Kind:      next,
			CreatedAt: time.Now().UTC(),
		}
	default:
		current.Kind = next
		d.reactions[messageID][userID] = current
	}

	return d.reactionList(messageID), nil
}

func (d *DB) MarkRead(_ context.Context, courseID, userID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range messageIDs {
		stored, ok := d.messages[id]
		if !ok || stored.msg.CourseID != courseID {
			continue
		}
		if d.reads[id] == nil {
			d.reads[id] = make(map[uuid.UUID]time.Time)
		}
		if _, done := d.reads[id][userID]; !done {
			d.reads[id][userID] = at
		}
	}
	return nil
}

// ReadAt — момент прочтения сообщения пользователем (для тестов)
func (d *DB) ReadAt(messageID, userID uuid.UUID) (time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	at, ok := d.reads[messageID][userID]
	return at, ok
}

func (d *DB) RecentMessages(_ context.Context, q chat.HistoryQuery) ([]models.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if q.Before == nil {
		return d.collect(q.CourseID, q.Limit, func(*storedMessage) bool { return true }), nil
	}

	// При равном времени порядок задаёт seq якорного сообщения
	anchorSeq := int64(0)
	if q.BeforeID != nil {
		if anchor, ok := d.messages[*q.BeforeID]; ok {
			anchorSeq = anchor.seq
		}
	}
	return d.collect(q.CourseID, q.Limit, func(s *storedMessage) bool {
		if s.msg.CreatedAt.Before(*q.Before) {
			return true
		}
		return s.msg.CreatedAt.Equal(*q.Before) && s.seq < anchorSeq
	}), nil
}

func (d *DB) SearchMessages(_ context.Context, courseID uuid.UUID, term string, limit int) ([]models.Message, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	needle := strings.ToLower(term)
	return d.collect(courseID, limit, func(s *storedMessage) bool {
		return strings.Contains(strings.ToLower(s.msg.Content), needle)
	}), nil
}

func (d *DB) CountUnread(_ context.Context, courseID, userID uuid.UUID) (int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var count int64
	for id, stored := range d.messages {
		m := stored.msg
		if m.CourseID != courseID || m.IsDeleted || m.SenderID == userID {
			continue
		}
		if _, read := d.reads[id][userID]; read {
			continue
		}
		count++
	}
	return count, nil
}

// collect отбирает неудалённые сообщения курса от новых к старым
func (d *DB) collect(courseID uuid.UUID, limit int, match func(*storedMessage) bool) []models.Message {
	var found []*storedMessage
	for _, stored := range d.messages {
		if stored.msg.CourseID != courseID || stored.msg.IsDeleted {
			continue
		}
		if match(stored) {
			found = append(found, stored)
		}
	}

	sort.Slice(found, func(i, j int) bool {
		if !found[i].msg.CreatedAt.Equal(found[j].msg.CreatedAt) {
			return found[i].msg.CreatedAt.After(found[j].msg.CreatedAt)
		}
		return found[i].seq > found[j].seq
	})

	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}

	out := make([]models.Message, len(found))
	for i, stored := range found {
		out[i] = d.hydrate(stored.msg, true)
	}
	return out
}

// hydrate подгружает связи так же, как Preload в gorm-адаптере
func (d *DB) hydrate(m models.Message, withReply bool) models.Message {
	m.Sender = d.users[m.SenderID]
	m.Reactions = d.reactionList(m.ID)
	m.ReplyTo = nil
	if withReply && m.ReplyToID != nil {
		if parent, ok := d.messages[*m.ReplyToID]; ok {
			p := d.hydrate(parent.msg, false)
			m.ReplyTo = &p
		}
	}
	return m
}

func (d *DB) reactionList(messageID uuid.UUID) []models.MessageReaction {
	list := make([]models.MessageReaction, 0, len(d.reactions[messageID]))
	for _, r := range d.reactions[messageID] {
		list = append(list, r)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].UserID.String() < list[j].UserID.String()
	})
	return list
}
