package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thereayou/coursechat/internal/chat"
	"github.com/thereayou/coursechat/internal/database/memdb"
	"github.com/thereayou/coursechat/internal/logger"
	"github.com/thereayou/coursechat/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestHub(t *testing.T, opts ...HubOption) *Hub {
	t.Helper()
	h := NewHub(logger.Discard(), opts...)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

func newTestClient(t *testing.T, h *Hub, name string) *Client {
	t.Helper()
	c := NewClient(h, nil, chat.Identity{UserID: uuid.New(), Role: models.RoleStudent, DisplayName: name})
	h.Register(c)
	return c
}

func drain(c *Client) []Message {
	var out []Message
	for {
		select {
		case frame, ok := <-c.Send:
			if !ok {
				return out
			}
			var msg Message
			if err := json.Unmarshal(frame, &msg); err == nil {
				out = append(out, msg)
			}
		default:
			return out
		}
	}
}

func types(msgs []Message) []MessageType {
	out := make([]MessageType, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func TestJoinRoomSendsSnapshotThenAnnounces(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")

	require.NoError(t, h.JoinRoom(alice, course, nil))
	drain(alice)

	snapshot := []chat.MessageView{{ID: uuid.New(), CourseID: course, Content: "first"}, {ID: uuid.New(), CourseID: course, Content: "second"}}
	require.NoError(t, h.JoinRoom(bob, course, func() ([]chat.MessageView, error) { return snapshot, nil }))

	got := drain(bob)
	require.Equal(t, []MessageType{TypeRecentMessages, TypeRoomUsers}, types(got))

	var recent RecentMessagesPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &recent))
	require.Len(t, recent.Messages, 2)
	assert.Equal(t, "first", recent.Messages[0].Content)

	var users RoomUsersPayload
	require.NoError(t, json.Unmarshal(got[1].Data, &users))
	assert.Equal(t, []string{"Alice", "Bob"}, []string{users.Users[0].Name, users.Users[1].Name})

	others := drain(alice)
	require.Equal(t, []MessageType{TypeUserJoined}, types(others))
	assert.Equal(t, bob.UserID(), *others[0].UserID)
	assert.Equal(t, course, *others[0].CourseID)
}

func TestJoinRoomDeliversMessagesPostedDuringSnapshot(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")
	require.NoError(t, h.JoinRoom(alice, course, nil))
	drain(alice)

	// Сообщение сохраняется и рассылается, пока Bob читает снимок
	posted := chat.MessageView{ID: uuid.New(), CourseID: course, Content: "в окне входа"}
	require.NoError(t, h.JoinRoom(bob, course, func() ([]chat.MessageView, error) {
		h.BroadcastToRoom(course, chat.EventNewMessage, posted)
		return []chat.MessageView{}, nil
	}))

	got := drain(bob)
	require.Equal(t, []MessageType{TypeRecentMessages, TypeRoomUsers, TypeNewMessage}, types(got))
	var view chat.MessageView
	require.NoError(t, json.Unmarshal(got[2].Data, &view))
	assert.Equal(t, posted.ID, view.ID)

	assert.Equal(t, []MessageType{TypeNewMessage, TypeUserJoined}, types(drain(alice)))
}

func TestJoinRoomSnapshotFailureIsSilent(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")
	require.NoError(t, h.JoinRoom(alice, course, nil))
	drain(alice)

	failure := errors.New("db down")
	err := h.JoinRoom(bob, course, func() ([]chat.MessageView, error) {
		h.BroadcastToRoom(course, chat.EventNewMessage, map[string]string{"content": "hi"})
		return nil, failure
	})
	assert.ErrorIs(t, err, failure)

	assert.False(t, bob.IsInRoom(course))
	assert.Len(t, h.GetRoomUsers(course), 1)
	assert.Empty(t, drain(bob))
	// Ни анонса, ни ухода: остальные вход Bob не видели
	assert.Equal(t, []MessageType{TypeNewMessage}, types(drain(alice)))
}

func TestJoinRoomDisconnectDuringSnapshot(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")
	require.NoError(t, h.JoinRoom(alice, course, nil))
	drain(alice)

	err := h.JoinRoom(bob, course, func() ([]chat.MessageView, error) {
		h.Unregister(bob)
		return []chat.MessageView{}, nil
	})
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Empty(t, drain(alice))
	assert.Len(t, h.GetRoomUsers(course), 1)
}

func TestJoinRoomLeavesPreviousRoom(t *testing.T) {
	h := newTestHub(t)
	physics, chemistry := uuid.New(), uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")

	require.NoError(t, h.JoinRoom(alice, physics, nil))
	require.NoError(t, h.JoinRoom(bob, physics, nil))
	require.NoError(t, h.StartTyping(alice, physics))
	drain(alice)
	drain(bob)

	require.NoError(t, h.JoinRoom(alice, chemistry, nil))
	drain(alice)

	assert.True(t, alice.IsInRoom(chemistry))
	assert.False(t, alice.IsInRoom(physics))
	assert.Equal(t, []MessageType{TypeUserStoppedTyping, TypeUserLeft}, types(drain(bob)))

	// Рассылка в старую комнату до Alice больше не доходит
	h.BroadcastToRoom(physics, chat.EventNewMessage, map[string]string{"content": "hi"})
	assert.Empty(t, drain(alice))
	assert.Len(t, drain(bob), 1)
}

func TestBroadcastIsolationBetweenRooms(t *testing.T) {
	h := newTestHub(t)
	physics, chemistry := uuid.New(), uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")
	outsider := newTestClient(t, h, "Eve")

	require.NoError(t, h.JoinRoom(alice, physics, nil))
	require.NoError(t, h.JoinRoom(bob, chemistry, nil))
	drain(alice)
	drain(bob)

	h.BroadcastToRoom(physics, chat.EventNewMessage, map[string]string{"content": "physics only"})

	assert.Equal(t, []MessageType{TypeNewMessage}, types(drain(alice)))
	assert.Empty(t, drain(bob))
	assert.Empty(t, drain(outsider))
}

func TestBroadcastOrderIsSharedByMembers(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	members := []*Client{newTestClient(t, h, "A"), newTestClient(t, h, "B"), newTestClient(t, h, "C")}
	for _, c := range members {
		require.NoError(t, h.JoinRoom(c, course, nil))
	}
	for _, c := range members {
		drain(c)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h.BroadcastToRoom(course, chat.EventNewMessage, map[string]int{"writer": i, "seq": j})
			}
		}(i)
	}
	wg.Wait()

	reference := drain(members[0])
	require.Len(t, reference, 40)
	for _, c := range members[1:] {
		got := drain(c)
		require.Len(t, got, 40)
		for i := range reference {
			assert.JSONEq(t, string(reference[i].Data), string(got[i].Data))
		}
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	users := memdb.New()
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	h := newTestHub(t, WithUserDirectory(users), WithClock(clock.Now))
	course := uuid.New()

	alice := NewClient(h, nil, chat.Identity{UserID: users.AddUser(models.User{Name: "Alice"}).ID, DisplayName: "Alice"})
	h.Register(alice)
	bob := newTestClient(t, h, "Bob")
	require.NoError(t, h.JoinRoom(alice, course, nil))
	require.NoError(t, h.JoinRoom(bob, course, nil))
	drain(bob)

	h.Unregister(alice)
	h.Unregister(alice)

	assert.True(t, alice.Closed())
	assert.Equal(t, []MessageType{TypeUserLeft}, types(drain(bob)))
	assert.Equal(t, 1, h.ClientCount())
	assert.ErrorIs(t, h.JoinRoom(alice, course, nil), ErrNotRegistered)

	require.Eventually(t, func() bool {
		u, err := users.GetUser(context.Background(), alice.UserID())
		return err == nil && u.LastSeenAt != nil && u.LastSeenAt.Equal(clock.Now())
	}, time.Second, 10*time.Millisecond)
}

func TestSecondConnectionIsNotAnnouncedTwice(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	identity := chat.Identity{UserID: uuid.New(), DisplayName: "Alice"}
	tab1 := NewClient(h, nil, identity)
	tab2 := NewClient(h, nil, identity)
	h.Register(tab1)
	h.Register(tab2)
	bob := newTestClient(t, h, "Bob")

	require.NoError(t, h.JoinRoom(bob, course, nil))
	require.NoError(t, h.JoinRoom(tab1, course, nil))
	require.NoError(t, h.JoinRoom(tab2, course, nil))
	assert.Equal(t, []MessageType{TypeUserJoined}, types(drain(bob)))
	assert.Len(t, h.GetRoomUsers(course), 2)

	h.Unregister(tab1)
	assert.Empty(t, drain(bob))
	h.Unregister(tab2)
	assert.Equal(t, []MessageType{TypeUserLeft}, types(drain(bob)))
}

func TestLeaveRoomMismatchIsNoop(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	require.NoError(t, h.JoinRoom(alice, course, nil))

	assert.False(t, h.LeaveRoom(alice, uuid.New()))
	assert.True(t, alice.IsInRoom(course))

	assert.True(t, h.LeaveCurrentRoom(alice))
	assert.False(t, alice.IsInRoom(course))
	assert.Empty(t, h.GetRoomUsers(course))
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h := newTestHub(t)
	course := uuid.New()
	fast := newTestClient(t, h, "Fast")

	slow := NewClient(h, nil, chat.Identity{UserID: uuid.New(), DisplayName: "Slow"})
	slow.Send = make(chan []byte, 2)
	h.Register(slow)

	require.NoError(t, h.JoinRoom(fast, course, nil))
	require.NoError(t, h.JoinRoom(slow, course, nil))

	for i := 0; i < 5; i++ {
		h.BroadcastToRoom(course, chat.EventNewMessage, map[string]int{"seq": i})
	}

	require.Eventually(t, slow.Closed, time.Second, 10*time.Millisecond)
	assert.False(t, fast.Closed())
	assert.Equal(t, 1, len(h.GetRoomUsers(course)))
}

func TestTypingIndicators(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	h := newTestHub(t, WithClock(clock.Now), WithTypingTimeout(3*time.Second))
	course := uuid.New()
	alice := newTestClient(t, h, "Alice")
	bob := newTestClient(t, h, "Bob")
	require.NoError(t, h.JoinRoom(alice, course, nil))
	require.NoError(t, h.JoinRoom(bob, course, nil))
	drain(alice)
	drain(bob)

	assert.ErrorIs(t, h.StartTyping(alice, uuid.New()), chat.ErrNotInRoom)

	// Серия нажатий даёт одно событие, автору оно не приходит
	require.NoError(t, h.StartTyping(alice, course))
	clock.Advance(time.Second)
	require.NoError(t, h.StartTyping(alice, course))
	assert.Equal(t, []MessageType{TypeUserTyping}, types(drain(bob)))
	assert.Empty(t, drain(alice))

	p := h.Presence(course)
	require.Len(t, p.Typing, 1)
	assert.Equal(t, "Alice", p.Typing[0].Name)
	assert.Len(t, p.Online, 2)

	clock.Advance(2 * time.Second)
	assert.Equal(t, 0, h.SweepTyping())

	clock.Advance(2 * time.Second)
	assert.Equal(t, 1, h.SweepTyping())
	got := drain(bob)
	require.Equal(t, []MessageType{TypeUserStoppedTyping}, types(got))
	var payload TypingPayload
	require.NoError(t, json.Unmarshal(got[0].Data, &payload))
	assert.Equal(t, alice.UserID(), payload.UserID)
	assert.Empty(t, h.Presence(course).Typing)

	// Явная остановка без активного индикатора ничего не рассылает
	require.NoError(t, h.StopTyping(alice, course))
	assert.Empty(t, drain(bob))

	require.NoError(t, h.StartTyping(alice, course))
	require.NoError(t, h.StopTyping(alice, course))
	assert.Equal(t, []MessageType{TypeUserTyping, TypeUserStoppedTyping}, types(drain(bob)))
}

func TestStopClosesClients(t *testing.T) {
	h := NewHub(logger.Discard())
	go h.Run()
	alice := NewClient(h, nil, chat.Identity{UserID: uuid.New()})
	h.Register(alice)

	h.Stop()
	assert.True(t, alice.Closed())

	// После остановки вызовы не блокируются
	h.Unregister(alice)
}
