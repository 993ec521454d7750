package chat

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/logger"
)

const (
	DefaultEditWindow   = 15 * time.Minute
	DefaultSnapshotSize = 50
	MaxContentLength    = 2000
)

// Service — координатор жизненного цикла сообщений: проверяет права и инварианты,
// сохраняет изменения и только после этого рассылает их в комнату
type Service struct {
	store        Store
	access       AccessOracle
	broadcaster  Broadcaster
	log          logger.Logger
	now          func() time.Time
	editWindow   time.Duration
	snapshotSize int
}

type Option func(*Service)

func WithEditWindow(d time.Duration) Option {
	return func(s *Service) { s.editWindow = d }
}

func WithSnapshotSize(n int) Option {
	return func(s *Service) { s.snapshotSize = n }
}

// WithClock подменяет часы (нужно тестам окна редактирования)
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, access AccessOracle, broadcaster Broadcaster, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		store:        store,
		access:       access,
		broadcaster:  broadcaster,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
		editWindow:   DefaultEditWindow,
		snapshotSize: DefaultSnapshotSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// authorize проверяет, что пользователь может находиться в комнате курса
func (s *Service) authorize(ctx context.Context, id Identity, courseID uuid.UUID) (CourseAccess, error) {
	access, err := s.access.GetCourseAccess(ctx, id.UserID, courseID)
	if err != nil {
		return CourseAccess{}, s.fail("get course access", err)
	}
	if !id.Policy().CanJoin(access) {
		return CourseAccess{}, denied("you are not a member of this course")
	}
	return access, nil
}

// Authorize — проверка членства для REST-поверхности и комнат
func (s *Service) Authorize(ctx context.Context, id Identity, courseID uuid.UUID) error {
	_, err := s.authorize(ctx, id, courseID)
	return err
}

// fail пропускает доменные ошибки, всё остальное логирует и превращает в ErrInternal
func (s *Service) fail(op string, err error) error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	s.log.Errorf("chat: %s: %v", op, err)
	return ErrInternal
}

func (s *Service) broadcast(courseID uuid.UUID, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastToRoom(courseID, event, payload)
}

// reload перечитывает сохранённую запись: рассылается только то, что лежит в хранилище
func (s *Service) reload(ctx context.Context, id uuid.UUID) (MessageView, error) {
	stored, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return MessageView{}, s.fail("reload message", err)
	}
	return NewMessageView(stored), nil
}
