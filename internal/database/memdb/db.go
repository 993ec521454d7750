// Package memdb — хранилище в памяти: режим STORE_DRIVER=memory и тесты
package memdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/models"
)

type storedMessage struct {
	seq int64
	msg models.Message
}

type DB struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]models.User
	courses     map[uuid.UUID]models.Course
	enrollments map[uuid.UUID]map[uuid.UUID]models.EnrollmentStatus // course -> student -> status
	messages    map[uuid.UUID]*storedMessage
	reactions   map[uuid.UUID]map[uuid.UUID]models.MessageReaction // message -> user -> reaction
	reads       map[uuid.UUID]map[uuid.UUID]time.Time              // message -> user -> read at
	seq         int64
}

var (
	_ chat.Store         = (*DB)(nil)
	_ chat.AccessOracle  = (*DB)(nil)
	_ chat.UserDirectory = (*DB)(nil)
)

func New() *DB {
	return &DB{
		users:       make(map[uuid.UUID]models.User),
		courses:     make(map[uuid.UUID]models.Course),
		enrollments: make(map[uuid.UUID]map[uuid.UUID]models.EnrollmentStatus),
		messages:    make(map[uuid.UUID]*storedMessage),
		reactions:   make(map[uuid.UUID]map[uuid.UUID]models.MessageReaction),
		reads:       make(map[uuid.UUID]map[uuid.UUID]time.Time),
	}
}

// AddUser сохраняет пользователя, при необходимости назначая ему id
func (d *DB) AddUser(u models.User) models.User {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = models.RoleStudent
	}
	u.IsActive = true
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	d.users[u.ID] = u
	return u
}

// Deactivate блокирует пользователя: его токены перестают приниматься
func (d *DB) Deactivate(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if u, ok := d.users[id]; ok {
		u.IsActive = false
		d.users[id] = u
	}
}

func (d *DB) AddCourse(c models.Course) models.Course {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	c.IsActive = true
	d.courses[c.ID] = c
	return c
}

func (d *DB) Enroll(courseID, studentID uuid.UUID, status models.EnrollmentStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.enrollments[courseID] == nil {
		d.enrollments[courseID] = make(map[uuid.UUID]models.EnrollmentStatus)
	}
	d.enrollments[courseID][studentID] = status
}

func (d *DB) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return nil, chat.ErrUserNotFound
	}
	return &u, nil
}

func (d *DB) TouchLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[id]
	if !ok {
		return chat.ErrUserNotFound
	}
	u.LastSeenAt = &at
	d.users[id] = u
	return nil
}

func (d *DB) GetCourseAccess(_ context.Context, userID, courseID uuid.UUID) (chat.CourseAccess, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	course, ok := d.courses[courseID]
	if !ok {
		return chat.CourseAccess{}, chat.ErrCourseNotFound
	}

	access := chat.CourseAccess{
		IsInstructor: course.InstructorID == userID,
		IsEnrolled:   d.enrollments[courseID][userID] == models.EnrollmentActive,
	}
	if u, ok := d.users[userID]; ok {
		access.IsAdmin = u.Role == models.RoleAdmin
	}
	return access, nil
}
