package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(hub *Hub, userID uint) *Client {
	c := NewClientWithConfig(hub, nil, userID, ClientConfig{BufferSize: 4})
	hub.Register(c)
	return c
}

func recv(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case raw := <-c.send:
		var ev struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &ev))
		return Event{Type: ev.Type, Data: ev.Data}
	case <-time.After(time.Second):
		t.Fatalf("клиент %s не получил сообщение", c.UserID)
		return Event{}
	}
}

func assertNoMessage(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw := <-c.send:
		t.Fatalf("неожиданное сообщение для %s: %s", c.UserID, string(raw))
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================================
// Hub
// ============================================================================

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	a1 := newTestClient(hub, 1)
	a2 := newTestClient(hub, 1)
	b := newTestClient(hub, 2)

	assert.Equal(t, 3, hub.ClientCount())
	assert.True(t, hub.IsOnline("1"))

	hub.Unregister(a1)
	assert.Equal(t, 2, hub.ClientCount())
	assert.True(t, hub.IsOnline("1"), "второе соединение пользователя осталось")

	hub.Unregister(a2)
	hub.Unregister(a2) // повторно - без паники
	assert.False(t, hub.IsOnline("1"))
	assert.True(t, a2.sendClosed.Load())
	assert.Equal(t, 1, hub.ClientCount())
	_ = b
}

func TestHub_SendToUserReachesAllConnections(t *testing.T) {
	hub := NewHub()
	a1 := newTestClient(hub, 1)
	a2 := newTestClient(hub, 1)
	b := newTestClient(hub, 2)

	ok := hub.SendToUser("1", []byte(`{"type":"X","data":null}`))

	assert.True(t, ok)
	assert.Equal(t, "X", recv(t, a1).Type)
	assert.Equal(t, "X", recv(t, a2).Type)
	assertNoMessage(t, b)
	assert.False(t, hub.SendToUser("99", []byte(`{}`)))
}

func TestHub_Rooms(t *testing.T) {
	hub := NewHub()
	a := newTestClient(hub, 1)
	b := newTestClient(hub, 2)
	room := ChallengeRoom(7)

	hub.JoinRoom(a, room)
	hub.JoinRoom(b, room)
	assert.Equal(t, 2, hub.RoomSize(room))
	assert.Equal(t, []string{"challenge:7"}, a.Rooms())

	hub.LeaveRoom(b, room)
	n := hub.BroadcastToRoom(room, []byte(`{"type":"R","data":null}`))
	assert.Equal(t, 1, n)
	assert.Equal(t, "R", recv(t, a).Type)
	assertNoMessage(t, b)

	hub.Unregister(a)
	assert.Equal(t, 0, hub.RoomSize(room), "отключение убирает клиента из комнат")
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	slow := NewClientWithConfig(hub, nil, 5, ClientConfig{BufferSize: 1})
	hub.Register(slow)

	hub.SendToUser("5", []byte(`{}`)) // заполняет буфер
	for i := 0; i < maxBufferWarnings; i++ {
		hub.SendToUser("5", []byte(`{}`))
	}

	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

// ============================================================================
// Manager
// ============================================================================

// memBus - in-process шина, имитирующая Redis Pub/Sub между инстансами
type memBus struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (b *memBus) Publish(channel string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		ch <- message
	}
	return nil
}

func (b *memBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *memBus) Close() error { return nil }

func TestManager_LocalDelivery(t *testing.T) {
	hub := NewHub()
	m := NewManager(hub, nil, "")
	a := newTestClient(hub, 1)
	b := newTestClient(hub, 2)
	hub.JoinRoom(b, ChallengeRoom(3))

	require.NoError(t, m.SendEventToUser(1, STAGE_COMPLETED, map[string]int{"stage_id": 10}))
	require.NoError(t, m.BroadcastEventToRoom(ChallengeRoom(3), CHALLENGE_JOINED, nil))
	require.NoError(t, m.BroadcastEvent(LEADERBOARD_UPDATED, nil))

	ev := recv(t, a)
	assert.Equal(t, STAGE_COMPLETED, ev.Type)
	assert.JSONEq(t, `{"stage_id":10}`, string(ev.Data.(json.RawMessage)))
	assert.Equal(t, LEADERBOARD_UPDATED, recv(t, a).Type)

	assert.Equal(t, CHALLENGE_JOINED, recv(t, b).Type)
	assert.Equal(t, LEADERBOARD_UPDATED, recv(t, b).Type)
}

func TestManager_ClusterRelay(t *testing.T) {
	// Arrange: два инстанса на общей шине
	bus := &memBus{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub1, hub2 := NewHub(), NewHub()
	m1 := NewManager(hub1, bus, "events")
	m2 := NewManager(hub2, bus, "events")
	require.NoError(t, m1.Start(ctx))
	require.NoError(t, m2.Start(ctx))

	local := newTestClient(hub1, 1)
	remote := newTestClient(hub2, 1)

	// Act
	require.NoError(t, m1.SendEventToUser(1, LEVEL_UP, map[string]int{"level": 2}))

	// Assert: каждый получает ровно одну копию
	assert.Equal(t, LEVEL_UP, recv(t, local).Type)
	assert.Equal(t, LEVEL_UP, recv(t, remote).Type)
	assertNoMessage(t, local)
	assertNoMessage(t, remote)
}

func TestManager_HandleMessage(t *testing.T) {
	hub := NewHub()
	m := NewManager(hub, nil, "")
	c := newTestClient(hub, 1)

	var got string
	m.RegisterHandler("ping", func(data json.RawMessage, client *Client) error {
		var body struct {
			Value string `json:"value"`
		}
		require.NoError(t, json.Unmarshal(data, &body))
		got = body.Value
		return nil
	})

	require.NoError(t, m.HandleMessage([]byte(`{"type":"ping","data":{"value":"v"}}`), c))
	assert.Equal(t, "v", got)

	require.NoError(t, m.HandleMessage([]byte(`{"type":"nope"}`), c))
	ev := recv(t, c)
	assert.Equal(t, MsgServerError, ev.Type)

	assert.Error(t, m.HandleMessage([]byte(`not json`), c))
}
