package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Manager обрабатывает входящие WebSocket-сообщения и доставляет события.
// При подключенном PubSubProvider события ретранслируются на другие инстансы.
type Manager struct {
	hub            *Hub
	pubsub         PubSubProvider
	channel        string
	instanceID     string
	messageHandler map[string]func(data json.RawMessage, client *Client) error
}

// NewManager создает новый менеджер WebSocket. pubsub может быть nil - тогда события только локальные.
func NewManager(hub *Hub, pubsub PubSubProvider, channel string) *Manager {
	if pubsub == nil {
		pubsub = &NoOpPubSub{}
	}
	if channel == "" {
		channel = "challengequest:events"
	}
	return &Manager{
		hub:            hub,
		pubsub:         pubsub,
		channel:        channel,
		instanceID:     uuid.NewString(),
		messageHandler: make(map[string]func(data json.RawMessage, client *Client) error),
	}
}

// Hub возвращает локальный хаб
func (m *Manager) Hub() *Hub {
	return m.hub
}

// Start подписывается на канал кластера. Завершается вместе с ctx.
func (m *Manager) Start(ctx context.Context) error {
	messages, err := m.pubsub.Subscribe(ctx, m.channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to cluster channel %s: %w", m.channel, err)
	}
	go func() {
		for raw := range messages {
			m.handleClusterMessage(raw)
		}
		log.Printf("[WebSocketManager] Прослушивание канала %s остановлено", m.channel)
	}()
	return nil
}

func (m *Manager) handleClusterMessage(raw []byte) {
	var msg ClusterMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Printf("[WebSocketManager] Некорректное сообщение кластера: %v", err)
		return
	}
	if msg.InstanceID == m.instanceID {
		return
	}
	m.deliverLocal(msg.Kind, msg.Target, msg.Payload)
}

func (m *Manager) deliverLocal(kind, target string, payload []byte) {
	switch kind {
	case clusterUser:
		m.hub.SendToUser(target, payload)
	case clusterRoom:
		m.hub.BroadcastToRoom(target, payload)
	case clusterBroadcast:
		m.hub.Broadcast(payload)
	default:
		log.Printf("[WebSocketManager] Неизвестный вид сообщения кластера: %s", kind)
	}
}

// dispatch доставляет событие локально и публикует его для остальных инстансов
func (m *Manager) dispatch(kind, target, eventType string, data interface{}) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", eventType, err)
	}
	m.deliverLocal(kind, target, payload)

	envelope, err := json.Marshal(ClusterMessage{
		Kind:       kind,
		Target:     target,
		InstanceID: m.instanceID,
		Payload:    payload,
		Timestamp:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal cluster message: %w", err)
	}
	return m.pubsub.Publish(m.channel, envelope)
}

// RegisterHandler регистрирует обработчик для определенного типа сообщений
func (m *Manager) RegisterHandler(eventType string, handler func(data json.RawMessage, client *Client) error) {
	m.messageHandler[eventType] = handler
}

// HandleMessage обрабатывает входящее сообщение от клиента.
// Возвращает error, если обработка не удалась и соединение нужно закрыть.
func (m *Manager) HandleMessage(message []byte, client *Client) error {
	var event struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(message, &event); err != nil {
		log.Printf("Failed to unmarshal message from %s: %v", client.UserID, err)
		m.SendErrorToClient(client, "invalid_message_format", "Invalid JSON format")
		return err
	}

	handler, ok := m.messageHandler[event.Type]
	if !ok {
		m.SendErrorToClient(client, "unknown_message_type", fmt.Sprintf("Unknown message type: %s", event.Type))
		return nil
	}
	return handler(event.Data, client)
}

// SendErrorToClient отправляет сообщение об ошибке в конкретное соединение, не закрывая его
func (m *Manager) SendErrorToClient(client *Client, code string, message string) {
	m.SendToClient(client, MsgServerError, map[string]string{
		"code":    code,
		"message": message,
	})
}

// SendToClient отправляет событие в конкретное соединение
func (m *Manager) SendToClient(client *Client, eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("[WebSocketManager] Ошибка сериализации %s: %v", eventType, err)
		return
	}
	m.hub.deliver(client, payload)
}

// SendEventToUser отправляет событие всем соединениям пользователя
func (m *Manager) SendEventToUser(userID uint, eventType string, data interface{}) error {
	return m.dispatch(clusterUser, strconv.FormatUint(uint64(userID), 10), eventType, data)
}

// BroadcastEventToRoom отправляет событие участникам комнаты
func (m *Manager) BroadcastEventToRoom(room string, eventType string, data interface{}) error {
	return m.dispatch(clusterRoom, room, eventType, data)
}

// BroadcastEvent отправляет событие всем клиентам
func (m *Manager) BroadcastEvent(eventType string, data interface{}) error {
	return m.dispatch(clusterBroadcast, "", eventType, data)
}

// GetMetrics возвращает текущие метрики WebSocket-системы
func (m *Manager) GetMetrics() map[string]interface{} {
	return map[string]interface{}{
		"client_count": m.hub.ClientCount(),
		"instance_id":  m.instanceID,
	}
}
