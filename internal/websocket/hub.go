package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/logger"
)

// room — участники одной комнаты курса. mu сериализует рассылку,
// поэтому все участники видят события комнаты в одном порядке
type room struct {
	id      uuid.UUID
	mu      sync.Mutex
	members map[uuid.UUID]*Client
}

func (r *room) hasUser(userID uuid.UUID) bool {
	for _, c := range r.members {
		if c.UserID() == userID {
			return true
		}
	}
	return false
}

type hubOp struct {
	client *Client
	done   chan struct{}
}

type Hub struct {
	clients map[uuid.UUID]*Client

	// Клиенты по UserID (один пользователь может иметь несколько соединений)
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Комнаты курсов
	rooms map[uuid.UUID]*room

	// Каналы для регистрации/отмены регистрации
	register   chan hubOp
	unregister chan hubOp

	typing *TypingTracker
	users  chat.UserDirectory
	log    logger.Logger
	now    func() time.Time

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

var _ chat.Broadcaster = (*Hub)(nil)

type HubOption func(*Hub)

func WithTypingTimeout(d time.Duration) HubOption {
	return func(h *Hub) { h.typing = NewTypingTracker(d) }
}

// WithUserDirectory включает обновление last_seen_at при отключении
func WithUserDirectory(users chat.UserDirectory) HubOption {
	return func(h *Hub) { h.users = users }
}

func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.now = now }
}

// NewHub создает новый Hub
func NewHub(log logger.Logger, opts ...HubOption) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[uuid.UUID]*room),
		register:    make(chan hubOp),
		unregister:  make(chan hubOp),
		typing:      NewTypingTracker(DefaultTypingTimeout),
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run запускает hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case op := <-h.register:
			h.registerClient(op.client)
			close(op.done)

		case op := <-h.unregister:
			h.unregisterClient(op.client)
			close(op.done)
		}
	}
}

// Stop останавливает hub и закрывает все соединения
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.close()
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
}

// Register регистрирует нового клиента и ждёт, пока hub его примет
func (h *Hub) Register(client *Client) {
	h.send(h.register, client)
}

// Unregister отменяет регистрацию клиента. Повторный вызов безопасен
func (h *Hub) Unregister(client *Client) {
	h.send(h.unregister, client)
}

func (h *Hub) send(ch chan hubOp, client *Client) {
	op := hubOp{client: client, done: make(chan struct{})}
	select {
	case ch <- op:
	case <-h.ctx.Done():
		return
	}
	select {
	case <-op.done:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client

	if _, ok := h.userClients[client.UserID()]; !ok {
		h.userClients[client.UserID()] = make(map[uuid.UUID]*Client)
	}
	h.userClients[client.UserID()][client.ID] = client

	h.log.Debugf("Client registered: %s (User: %s)", client.ID, client.UserID())
}

func (h *Hub) unregisterClient(client *Client) {
	var evicted []*Client
	lastConnection := false

	h.mu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		if courseID, inRoom := client.Room(); inRoom {
			evicted = h.removeFromRoomLocked(client, courseID)
		}

		// Удаляем из списка клиентов пользователя
		if userClients, ok := h.userClients[client.UserID()]; ok {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(h.userClients, client.UserID())
				lastConnection = true
			}
		}

		delete(h.clients, client.ID)
		client.close()

		h.log.Debugf("Client unregistered: %s (User: %s)", client.ID, client.UserID())
	}
	h.mu.Unlock()

	h.evict(evicted)

	if lastConnection && h.users != nil {
		go h.touchLastSeen(client.UserID())
	}
}

func (h *Hub) touchLastSeen(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.users.TouchLastSeen(ctx, userID, h.now()); err != nil {
		h.log.Warnf("hub: touch last seen %s: %v", userID, err)
	}
}

// evict отключает клиентов, не успевающих читать свою очередь
func (h *Hub) evict(clients []*Client) {
	for _, c := range clients {
		h.log.Warnf("hub: evicting slow client %s (User: %s)", c.ID, c.UserID())
		go h.Unregister(c)
	}
}

// SnapshotLoader читает последние сообщения комнаты в хронологическом порядке
type SnapshotLoader func() ([]chat.MessageView, error)

// JoinRoom переводит клиента в комнату курса. Права проверяются до вызова.
// Клиент становится участником до чтения снимка, а события комнаты, пришедшие
// во время чтения, доставляются ему сразу после recent-messages и room-users.
// Сообщение, попавшее и в снимок, и в событие, клиент отбрасывает по id
func (h *Hub) JoinRoom(client *Client, courseID uuid.UUID, load SnapshotLoader) error {
	evicted, err := h.enterRoom(client, courseID)
	h.evict(evicted)
	if err != nil {
		return err
	}

	var snapshot []chat.MessageView
	if load != nil {
		snapshot, err = load()
		if err != nil {
			h.abortJoin(client, courseID)
			return err
		}
	}

	evicted, err = h.completeJoin(client, courseID, snapshot)
	h.evict(evicted)
	return err
}

// enterRoom добавляет клиента в участники и включает буфер событий
func (h *Hub) enterRoom(client *Client, courseID uuid.UUID) ([]*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Соединение могло закрыться, пока проверялись права
	if _, ok := h.clients[client.ID]; !ok {
		return nil, ErrNotRegistered
	}

	var evicted []*Client
	prev, inRoom := client.Room()
	if inRoom && prev != courseID {
		evicted = h.removeFromRoomLocked(client, prev)
	}

	r, ok := h.rooms[courseID]
	if !ok {
		r = &room{id: courseID, members: make(map[uuid.UUID]*Client)}
		h.rooms[courseID] = r
	}

	// Второе соединение того же пользователя не анонсируется повторно
	rejoin := inRoom && prev == courseID
	if !rejoin {
		client.hidden = !r.hasUser(client.UserID())
	}

	client.startBuffering()
	r.members[client.ID] = client
	id := courseID
	client.setRoom(&id)

	return evicted, nil
}

// completeJoin отправляет снимок и состав комнаты, затем накопленные события и анонс
func (h *Hub) completeJoin(client *Client, courseID uuid.UUID, snapshot []chat.MessageView) ([]*Client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[courseID]
	if !ok || r.members[client.ID] != client {
		// Клиент ушёл или отключился, пока читался снимок
		client.discard()
		return nil, ErrNotRegistered
	}

	var evicted []*Client
	if snapshot == nil {
		snapshot = []chat.MessageView{}
	}
	if err := client.SendMessage(TypeRecentMessages, &courseID, RecentMessagesPayload{CourseID: courseID, Messages: snapshot}); err == ErrClientQueueFull {
		evicted = append(evicted, client)
	}
	if err := client.SendMessage(TypeRoomUsers, &courseID, RoomUsersPayload{CourseID: courseID, Users: roomUsers(r)}); err == ErrClientQueueFull {
		evicted = append(evicted, client)
	}
	if err := client.flush(); err == ErrClientQueueFull {
		evicted = append(evicted, client)
	}

	if client.hidden {
		client.hidden = false
		evicted = append(evicted, h.fanOut(r, TypeUserJoined, client.UserID(), memberOf(client.Identity), client.ID)...)
	}
	return evicted, nil
}

// abortJoin убирает клиента из комнаты после неудачного чтения снимка.
// Неанонсированный вход остальные участники не замечают
func (h *Hub) abortJoin(client *Client, courseID uuid.UUID) {
	h.mu.Lock()
	client.discard()
	var evicted []*Client
	if r, ok := h.rooms[courseID]; ok && r.members[client.ID] == client {
		evicted = h.removeFromRoomLocked(client, courseID)
	}
	h.mu.Unlock()

	h.evict(evicted)
}

// LeaveRoom выводит клиента из комнаты. Несовпадающий courseID — no-op
func (h *Hub) LeaveRoom(client *Client, courseID uuid.UUID) bool {
	h.mu.Lock()
	current, inRoom := client.Room()
	if !inRoom || current != courseID {
		h.mu.Unlock()
		return false
	}
	evicted := h.removeFromRoomLocked(client, courseID)
	h.mu.Unlock()

	h.evict(evicted)
	return true
}

// LeaveCurrentRoom выводит клиента из комнаты, в которой он находится
func (h *Hub) LeaveCurrentRoom(client *Client) bool {
	courseID, ok := client.Room()
	if !ok {
		return false
	}
	return h.LeaveRoom(client, courseID)
}

// removeFromRoomLocked вызывается под h.mu.Lock
func (h *Hub) removeFromRoomLocked(client *Client, courseID uuid.UUID) []*Client {
	client.setRoom(nil)
	announced := !client.hidden
	client.hidden = false

	r, ok := h.rooms[courseID]
	if !ok {
		return nil
	}
	if _, ok := r.members[client.ID]; !ok {
		return nil
	}
	delete(r.members, client.ID)

	var evicted []*Client
	if entry, wasTyping := h.typing.Stop(courseID, client.ID); wasTyping {
		evicted = append(evicted, h.fanOut(r, TypeUserStoppedTyping, client.UserID(), typingPayload(entry), uuid.Nil)...)
	}

	if len(r.members) == 0 {
		delete(h.rooms, courseID)
		return evicted
	}

	// Уведомляем других участников, если у пользователя не осталось соединений в комнате
	if announced && !r.hasUser(client.UserID()) {
		evicted = append(evicted, h.fanOut(r, TypeUserLeft, client.UserID(), memberOf(client.Identity), uuid.Nil)...)
	}
	return evicted
}

// BroadcastToRoom рассылает событие всем участникам комнаты, включая автора
func (h *Hub) BroadcastToRoom(courseID uuid.UUID, event string, payload interface{}) {
	h.mu.RLock()
	var evicted []*Client
	if r, ok := h.rooms[courseID]; ok {
		evicted = h.fanOut(r, MessageType(event), uuid.Nil, payload, uuid.Nil)
	}
	h.mu.RUnlock()

	h.evict(evicted)
}

// fanOut вызывается под h.mu (чтение или запись). Возвращает клиентов с переполненной очередью
func (h *Hub) fanOut(r *room, msgType MessageType, userID uuid.UUID, payload interface{}, exclude uuid.UUID) []*Client {
	courseID := r.id
	var uid *uuid.UUID
	if userID != uuid.Nil {
		uid = &userID
	}

	frame, err := encode(msgType, &courseID, uid, payload, h.now())
	if err != nil {
		h.log.Errorf("hub: encode %s: %v", msgType, err)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Client
	for _, client := range r.members {
		if client.ID == exclude {
			continue
		}
		if err := client.enqueue(frame); err == ErrClientQueueFull {
			evicted = append(evicted, client)
		}
	}
	return evicted
}

func typingPayload(e TypingEntry) TypingPayload {
	return TypingPayload{CourseID: e.CourseID, UserID: e.Identity.UserID, Name: e.Identity.DisplayName}
}

// StartTyping отмечает, что клиент печатает в своей комнате
func (h *Hub) StartTyping(client *Client, courseID uuid.UUID) error {
	h.mu.RLock()
	r, ok := h.rooms[courseID]
	if !ok || !client.IsInRoom(courseID) {
		h.mu.RUnlock()
		return chat.ErrNotInRoom
	}

	var evicted []*Client
	if h.typing.Start(courseID, client.ID, client.Identity, h.now()) {
		entry := TypingEntry{CourseID: courseID, Identity: client.Identity}
		evicted = h.fanOut(r, TypeUserTyping, client.UserID(), typingPayload(entry), client.ID)
	}
	h.mu.RUnlock()

	h.evict(evicted)
	return nil
}

func (h *Hub) StopTyping(client *Client, courseID uuid.UUID) error {
	h.mu.RLock()
	r, ok := h.rooms[courseID]
	if !ok || !client.IsInRoom(courseID) {
		h.mu.RUnlock()
		return chat.ErrNotInRoom
	}

	var evicted []*Client
	if entry, wasTyping := h.typing.Stop(courseID, client.ID); wasTyping {
		evicted = h.fanOut(r, TypeUserStoppedTyping, client.UserID(), typingPayload(entry), client.ID)
	}
	h.mu.RUnlock()

	h.evict(evicted)
	return nil
}

// SweepTyping снимает истёкшие индикаторы и сообщает об этом комнатам.
// Вызывается планировщиком раз в секунду
func (h *Hub) SweepTyping() int {
	expired := h.typing.Sweep(h.now())
	if len(expired) == 0 {
		return 0
	}

	h.mu.RLock()
	var evicted []*Client
	for _, e := range expired {
		if r, ok := h.rooms[e.CourseID]; ok {
			evicted = append(evicted, h.fanOut(r, TypeUserStoppedTyping, e.Identity.UserID, typingPayload(e), e.ClientID)...)
		}
	}
	h.mu.RUnlock()

	h.evict(evicted)
	return len(expired)
}

// roomUsers вызывается под h.mu
func roomUsers(r *room) []MemberView {
	seen := make(map[uuid.UUID]bool)
	users := make([]MemberView, 0, len(r.members))
	for _, c := range r.members {
		if seen[c.UserID()] {
			continue
		}
		seen[c.UserID()] = true
		users = append(users, memberOf(c.Identity))
	}

	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].UserID.String() < users[j].UserID.String()
	})
	return users
}

// GetRoomUsers возвращает список пользователей в комнате
func (h *Hub) GetRoomUsers(courseID uuid.UUID) []MemberView {
	h.mu.RLock()
	defer h.mu.RUnlock()

	r, ok := h.rooms[courseID]
	if !ok {
		return []MemberView{}
	}
	return roomUsers(r)
}

func (h *Hub) Presence(courseID uuid.UUID) Presence {
	typing := h.typing.Typing(courseID, h.now())
	p := Presence{
		CourseID: courseID,
		Online:   h.GetRoomUsers(courseID),
		Typing:   make([]MemberView, 0, len(typing)),
	}
	for _, id := range typing {
		p.Typing = append(p.Typing, memberOf(id))
	}
	return p
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
