package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/models"
)

// Identity — аутентифицированный пользователь соединения или HTTP-запроса
type Identity struct {
	UserID      uuid.UUID   `json:"user_id"`
	Role        models.Role `json:"role"`
	DisplayName string      `json:"name"`
}

func (id Identity) Policy() Policy {
	return PolicyFor(id.Role)
}

type CourseAccess struct {
	IsInstructor bool `json:"is_instructor"`
	IsEnrolled   bool `json:"is_enrolled"`
	IsAdmin      bool `json:"is_admin"`
}

type IdentityVerifier interface {
	VerifyCredential(ctx context.Context, token string) (Identity, error)
}

// AccessOracle отвечает на вопрос "кем пользователь является в курсе".
// Для неизвестного курса возвращает ErrCourseNotFound
type AccessOracle interface {
	GetCourseAccess(ctx context.Context, userID, courseID uuid.UUID) (CourseAccess, error)
}

type HistoryQuery struct {
	CourseID uuid.UUID
	Limit    int
	Before   *time.Time
	// BeforeID уточняет курсор: при равном created_at берутся сообщения
	// с меньшим id. Без него сравнение по времени строгое
	BeforeID *uuid.UUID
}

// Store — постоянное хранилище сообщений.
// GetMessage возвращает ErrMessageNotFound, списки отдаются от новых к старым
// и не содержат удалённых сообщений
type Store interface {
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	UpdateMessage(ctx context.Context, message *models.Message) error
	ToggleReaction(ctx context.Context, messageID, userID uuid.UUID, kind models.ReactionKind) ([]models.MessageReaction, error)
	MarkRead(ctx context.Context, courseID, userID uuid.UUID, messageIDs []uuid.UUID, at time.Time) error
	RecentMessages(ctx context.Context, q HistoryQuery) ([]models.Message, error)
	SearchMessages(ctx context.Context, courseID uuid.UUID, term string, limit int) ([]models.Message, error)
	CountUnread(ctx context.Context, courseID, userID uuid.UUID) (int64, error)
}

// UserDirectory — справочник пользователей; для неизвестного id возвращает ErrUserNotFound
type UserDirectory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	TouchLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

// Broadcaster рассылает событие всем соединениям комнаты курса
type Broadcaster interface {
	BroadcastToRoom(courseID uuid.UUID, event string, payload interface{})
}

const (
	EventNewMessage      = "new-message"
	EventMessageEdited   = "message-edited"
	EventMessageDeleted  = "message-deleted"
	EventReactionUpdated = "message-reaction-updated"
)
