package websocket

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
)

const DefaultTypingTimeout = 3 * time.Second

type typingKey struct {
	courseID uuid.UUID
	clientID uuid.UUID
}

// TypingEntry — индикатор набора текста одного соединения в одной комнате
type TypingEntry struct {
	CourseID uuid.UUID
	ClientID uuid.UUID
	Identity chat.Identity
	LastSeen time.Time
}

// TypingTracker хранит индикаторы набора. Истечение отслеживает сервер:
// запись без обновления дольше timeout считается снятой
type TypingTracker struct {
	mu      sync.Mutex
	timeout time.Duration
	entries map[typingKey]*TypingEntry
}

func NewTypingTracker(timeout time.Duration) *TypingTracker {
	if timeout <= 0 {
		timeout = DefaultTypingTimeout
	}
	return &TypingTracker{
		timeout: timeout,
		entries: make(map[typingKey]*TypingEntry),
	}
}

func (t *TypingTracker) expired(e *TypingEntry, now time.Time) bool {
	return now.Sub(e.LastSeen) > t.timeout
}

// Start записывает или продлевает индикатор. true — если о нём нужно сообщить комнате
// (запись новая или успела истечь), серия нажатий схлопывается в одно событие
func (t *TypingTracker) Start(courseID, clientID uuid.UUID, identity chat.Identity, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{courseID: courseID, clientID: clientID}
	if e, ok := t.entries[key]; ok {
		stale := t.expired(e, now)
		e.LastSeen = now
		return stale
	}

	t.entries[key] = &TypingEntry{
		CourseID: courseID,
		ClientID: clientID,
		Identity: identity,
		LastSeen: now,
	}
	return true
}

// Stop снимает индикатор; ok=false, если его не было
func (t *TypingTracker) Stop(courseID, clientID uuid.UUID) (TypingEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{courseID: courseID, clientID: clientID}
	e, ok := t.entries[key]
	if !ok {
		return TypingEntry{}, false
	}
	delete(t.entries, key)
	return *e, true
}

// Sweep удаляет истёкшие записи и возвращает их
func (t *TypingTracker) Sweep(now time.Time) []TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []TypingEntry
	for key, e := range t.entries {
		if t.expired(e, now) {
			expired = append(expired, *e)
			delete(t.entries, key)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return expired[i].LastSeen.Before(expired[j].LastSeen)
	})
	return expired
}

// Typing возвращает печатающих в комнате, по одному на пользователя
func (t *TypingTracker) Typing(courseID uuid.UUID, now time.Time) []chat.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var users []chat.Identity
	for key, e := range t.entries {
		if key.courseID != courseID || t.expired(e, now) || seen[e.Identity.UserID] {
			continue
		}
		seen[e.Identity.UserID] = true
		users = append(users, e.Identity)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].UserID.String() < users[j].UserID.String()
	})
	return users
}
