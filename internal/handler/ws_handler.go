package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"

	"github.com/yourusername/challengequest-api/internal/pkg/response"
	"github.com/yourusername/challengequest-api/internal/websocket"
	"github.com/yourusername/challengequest-api/pkg/auth"
)

// WSHandler обрабатывает WebSocket соединения
type WSHandler struct {
	wsManager    *websocket.Manager
	jwtService   *auth.JWTService
	clientConfig websocket.ClientConfig
	upgrader     gorillaws.Upgrader
}

// NewWSHandler создает новый обработчик WebSocket.
// allowedOrigins синхронизирован с CORS; пустой Origin (мобильные клиенты, curl) разрешен.
func NewWSHandler(
	wsManager *websocket.Manager,
	jwtService *auth.JWTService,
	allowedOrigins []string,
	clientConfig websocket.ClientConfig,
) *WSHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	handler := &WSHandler{
		wsManager:    wsManager,
		jwtService:   jwtService,
		clientConfig: clientConfig,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				if _, ok := allowed[origin]; ok {
					return true
				}
				log.Printf("WebSocket: rejected unauthorized origin: %s", origin)
				return false
			},
			EnableCompression: true,
		},
	}

	// Регистрируем обработчики сообщений один раз при создании обработчика
	handler.registerMessageHandlers()

	return handler
}

// HandleConnection обрабатывает входящее WebSocket соединение (?ticket=...)
func (h *WSHandler) HandleConnection(c *gin.Context) {
	// НЕ логируем тикет - это секретные данные аутентификации
	ticket := c.Query("ticket")
	if ticket == "" {
		response.Fail(c, http.StatusUnauthorized, "TICKET_MISSING", "Missing authentication ticket parameter")
		return
	}

	claims, err := h.jwtService.ParseWSTicket(ticket)
	if err != nil {
		log.Printf("WebSocket: Invalid or expired ticket - %v", err)
		response.Fail(c, http.StatusUnauthorized, "TICKET_INVALID", "Invalid or expired ticket")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade уже записал ответ клиенту
		log.Printf("Error upgrading connection: %v", err)
		return
	}

	log.Printf("WebSocket: Connection upgraded for UserID: %d", claims.UserID)

	client := websocket.NewClientWithConfig(h.wsManager.Hub(), conn, claims.UserID, h.clientConfig)
	client.StartPumps(h.wsManager.HandleMessage)
}

// roomRequest - данные room:join / room:leave
type roomRequest struct {
	ChallengeID uint `json:"challenge_id"`
}

func (h *WSHandler) parseRoomRequest(data json.RawMessage, client *websocket.Client, eventType string) (string, bool) {
	var req roomRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ChallengeID == 0 {
		log.Printf("[WSHandler] Ошибка парсинга %s от пользователя %s: %v, Data: %s", eventType, client.UserID, err, string(data))
		h.wsManager.SendErrorToClient(client, "invalid_format", fmt.Sprintf("Failed to parse %s event", eventType))
		return "", false
	}
	return websocket.ChallengeRoom(req.ChallengeID), true
}

// registerMessageHandlers регистрирует обработчики для различных типов сообщений.
// Ошибки данных не закрывают соединение: клиент получает server:error.
func (h *WSHandler) registerMessageHandlers() {
	h.wsManager.RegisterHandler(websocket.MsgRoomJoin, func(data json.RawMessage, client *websocket.Client) error {
		room, ok := h.parseRoomRequest(data, client, websocket.MsgRoomJoin)
		if !ok {
			return nil
		}
		h.wsManager.Hub().JoinRoom(client, room)
		log.Printf("[WSHandler] User %s joined room %s", client.UserID, room)
		h.wsManager.SendToClient(client, websocket.MsgRoomJoined, map[string]string{"room": room})
		return nil
	})

	h.wsManager.RegisterHandler(websocket.MsgRoomLeave, func(data json.RawMessage, client *websocket.Client) error {
		room, ok := h.parseRoomRequest(data, client, websocket.MsgRoomLeave)
		if !ok {
			return nil
		}
		h.wsManager.Hub().LeaveRoom(client, room)
		h.wsManager.SendToClient(client, websocket.MsgRoomLeft, map[string]string{"room": room})
		return nil
	})

	// Ответ уходит только в это соединение, а не во все вкладки пользователя
	h.wsManager.RegisterHandler(websocket.MsgHeartbeat, func(data json.RawMessage, client *websocket.Client) error {
		h.wsManager.SendToClient(client, websocket.MsgServerHeartbeat, map[string]interface{}{
			"timestamp": time.Now().UnixMilli(),
		})
		return nil
	})
}
