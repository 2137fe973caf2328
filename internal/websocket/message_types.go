package websocket

import "fmt"

// События прохождения челленджей (сервер -> клиент)
const (
	// CHALLENGE_JOINED - пользователь присоединился к челленджу
	CHALLENGE_JOINED = "CHALLENGE_JOINED"

	// STAGE_COMPLETED - этап пройден
	STAGE_COMPLETED = "STAGE_COMPLETED"

	// CHALLENGE_COMPLETED - все этапы пройдены, награда начислена
	CHALLENGE_COMPLETED = "CHALLENGE_COMPLETED"

	// LEVEL_UP - уровень пользователя вырос
	LEVEL_UP = "LEVEL_UP"

	// LEADERBOARD_UPDATED - изменился рейтинг
	LEADERBOARD_UPDATED = "LEADERBOARD_UPDATED"
)

// Служебные сообщения
const (
	MsgRoomJoin        = "room:join"
	MsgRoomLeave       = "room:leave"
	MsgRoomJoined      = "room:joined"
	MsgRoomLeft        = "room:left"
	MsgHeartbeat       = "user:heartbeat"
	MsgServerHeartbeat = "server:heartbeat"
	MsgServerError     = "server:error"
)

// Event представляет структуру WebSocket-сообщения
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ChallengeRoom возвращает имя комнаты челленджа
func ChallengeRoom(challengeID uint) string {
	return fmt.Sprintf("challenge:%d", challengeID)
}
