package websocket

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/thereayou/coursechat/internal/chat"
)

const (
	// Время ожидания записи
	writeWait = 10 * time.Second

	// Время ожидания pong от клиента
	pongWait = 60 * time.Second

	// Интервал отправки ping
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения
	maxMessageSize = 64 * 1024 // 64KB

	// Размер очереди исходящих сообщений
	sendBufferSize = 256
)

type ClientMessageHandler interface {
	HandleMessage(client *Client, msg *Message) error
}

// Client — одно WebSocket-соединение. Conn может быть nil (тесты hub без сети)
type Client struct {
	ID       uuid.UUID
	Identity chat.Identity
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	mu     sync.RWMutex
	room   *uuid.UUID
	closed bool

	// Пока идёт вход в комнату, события комнаты копятся здесь и уходят после снимка
	buffering bool
	pending   [][]byte

	// hidden: вход ещё не анонсирован. Меняется только под Hub.mu
	hidden bool
}

func NewClient(hub *Hub, conn *websocket.Conn, identity chat.Identity) *Client {
	return &Client{
		ID:       uuid.New(),
		Identity: identity,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		Hub:      hub,
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.Identity.UserID
}

// Room возвращает текущую комнату соединения
func (c *Client) Room() (uuid.UUID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.room == nil {
		return uuid.Nil, false
	}
	return *c.room, true
}

func (c *Client) IsInRoom(courseID uuid.UUID) bool {
	room, ok := c.Room()
	return ok && room == courseID
}

func (c *Client) setRoom(courseID *uuid.UUID) {
	c.mu.Lock()
	c.room = courseID
	c.mu.Unlock()
}

// enqueue доставляет событие комнаты. Не блокируется: переполненная очередь —
// сигнал hub выкинуть клиента
func (c *Client) enqueue(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	if c.buffering {
		if len(c.pending) >= sendBufferSize {
			return ErrClientQueueFull
		}
		c.pending = append(c.pending, frame)
		return nil
	}
	return c.pushLocked(frame)
}

// push ставит кадр в очередь мимо буфера входа (ответы самому соединению)
func (c *Client) push(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	return c.pushLocked(frame)
}

func (c *Client) pushLocked(frame []byte) error {
	select {
	case c.Send <- frame:
		return nil
	default:
		return ErrClientQueueFull
	}
}

func (c *Client) startBuffering() {
	c.mu.Lock()
	c.buffering = true
	c.pending = nil
	c.mu.Unlock()
}

// flush отправляет накопленные за время входа события и выключает буфер
func (c *Client) flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.pending
	c.buffering = false
	c.pending = nil
	if c.closed {
		return ErrClientClosed
	}
	for _, frame := range pending {
		if err := c.pushLocked(frame); err != nil {
			return err
		}
	}
	return nil
}

// discard выключает буфер без отправки
func (c *Client) discard() {
	c.mu.Lock()
	c.buffering = false
	c.pending = nil
	c.mu.Unlock()
}

// close закрывает очередь ровно один раз
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

func (c *Client) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// ReadPump читает сообщения от клиента
func (c *Client) ReadPump(handler ClientMessageHandler) {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.Hub.log.Warnf("websocket: client %s: %v", c.ID, err)
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.SendError(chat.ErrInvalidPayload, "")
			continue
		}

		// Отправитель определяется соединением, а не содержимым кадра
		userID := c.UserID()
		msg.UserID = &userID

		if msg.Type == TypePing {
			c.SendMessage(TypePong, nil, nil)
			continue
		}

		c.dispatch(handler, &msg)
	}
}

// dispatch изолирует сбой одного события: паника превращается в error-событие
func (c *Client) dispatch(handler ClientMessageHandler, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.Hub.log.Errorf("websocket: panic handling %s from %s: %v", msg.Type, c.UserID(), r)
			c.SendError(fmt.Errorf("panic: %v", r), msg.Type)
		}
	}()

	if handler == nil {
		return
	}
	if err := handler.HandleMessage(c, msg); err != nil {
		var ce *chat.Error
		if !errors.As(err, &ce) {
			c.Hub.log.Errorf("websocket: handling %s from %s: %v", msg.Type, c.UserID(), err)
		}
		c.SendError(err, msg.Type)
	}
}

// WritePump отправляет сообщения клиенту
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// Отправляем все накопившиеся сообщения, каждое отдельным кадром
			n := len(c.Send)
			for i := 0; i < n; i++ {
				queued, ok := <-c.Send
				if !ok {
					c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.Conn.WriteMessage(websocket.TextMessage, queued); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage ставит событие в очередь только этому соединению
func (c *Client) SendMessage(msgType MessageType, courseID *uuid.UUID, data interface{}) error {
	frame, err := encode(msgType, courseID, nil, data, time.Now().UTC())
	if err != nil {
		return err
	}
	return c.push(frame)
}

// SendError отправляет error-событие; внутренние детали клиенту не раскрываются
func (c *Client) SendError(err error, event MessageType) {
	ce := chat.AsError(err)
	c.SendMessage(TypeError, nil, ErrorPayload{
		Message: ce.Message,
		Code:    ce.ErrorCode(),
		Event:   event,
	})
}
