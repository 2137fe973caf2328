package websocket

import (
	"log"
	"sync"
)

// Hub хранит локальные подключения этого инстанса: по пользователям и по комнатам.
// Один пользователь может иметь несколько соединений (вкладки, устройства).
type Hub struct {
	mu      sync.RWMutex
	users   map[string]map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	clients int
}

// NewHub создает пустой хаб
func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*Client]struct{}),
		rooms: make(map[string]map[*Client]struct{}),
	}
}

// Register добавляет клиента в хаб
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.users[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.users[c.UserID] = set
	}
	if _, exists := set[c]; exists {
		return
	}
	set[c] = struct{}{}
	h.clients++
	log.Printf("[WebSocketHub] Клиент зарегистрирован: UserID=%s, ConnID=%s, всего=%d", c.UserID, c.ConnectionID, h.clients)
}

// Unregister удаляет клиента из хаба и всех его комнат и закрывает канал отправки
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	set, ok := h.users[c.UserID]
	if ok {
		if _, exists := set[c]; exists {
			delete(set, c)
			h.clients--
			if len(set) == 0 {
				delete(h.users, c.UserID)
			}
		} else {
			ok = false
		}
	}
	for _, room := range c.Rooms() {
		h.removeFromRoomLocked(c, room)
	}
	h.mu.Unlock()

	if ok {
		c.CloseSend()
		log.Printf("[WebSocketHub] Клиент отключен: UserID=%s, ConnID=%s", c.UserID, c.ConnectionID)
	}
}

// JoinRoom добавляет клиента в комнату
func (h *Hub) JoinRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.addRoom(room)
}

// LeaveRoom удаляет клиента из комнаты
func (h *Hub) LeaveRoom(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoomLocked(c, room)
}

func (h *Hub) removeFromRoomLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	c.removeRoom(room)
}

// SendToUser ставит сообщение в очередь всем соединениям пользователя.
// Возвращает true, если у пользователя есть хотя бы одно локальное соединение.
func (h *Hub) SendToUser(userID string, message []byte) bool {
	targets := h.snapshot(h.users, userID)
	for _, c := range targets {
		h.deliver(c, message)
	}
	return len(targets) > 0
}

// BroadcastToRoom отправляет сообщение всем участникам комнаты
func (h *Hub) BroadcastToRoom(room string, message []byte) int {
	targets := h.snapshot(h.rooms, room)
	for _, c := range targets {
		h.deliver(c, message)
	}
	return len(targets)
}

// Broadcast отправляет сообщение всем локальным клиентам
func (h *Hub) Broadcast(message []byte) int {
	h.mu.RLock()
	targets := make([]*Client, 0, h.clients)
	for _, set := range h.users {
		for c := range set {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, message)
	}
	return len(targets)
}

func (h *Hub) snapshot(index map[string]map[*Client]struct{}, key string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := index[key]
	out := make([]*Client, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// deliver не блокируется: при переполненном буфере сообщение отбрасывается,
// а после maxBufferWarnings подряд клиент отключается
func (h *Hub) deliver(c *Client, message []byte) {
	if c.trySend(message) {
		return
	}
	warnings := c.incrementBufferWarningCount()
	log.Printf("[WebSocketHub] Буфер клиента переполнен (UserID=%s, ConnID=%s), предупреждение %d/%d",
		c.UserID, c.ConnectionID, warnings, maxBufferWarnings)
	if warnings >= maxBufferWarnings {
		go h.Unregister(c)
	}
}

// ClientCount возвращает число локальных соединений
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients
}

// RoomSize возвращает число участников комнаты
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// IsOnline сообщает, есть ли у пользователя локальные соединения
func (h *Hub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}
