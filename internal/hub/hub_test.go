package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportsmeet/listing-chat/internal/config"
	"github.com/sportsmeet/listing-chat/internal/domain"
	"github.com/sportsmeet/listing-chat/pkg/pubsub"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 4096,
		TypingTTL:      100 * time.Millisecond,
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(testConfig())
	go h.Run()
	return h
}

func newTestClient(id, userID string) *Client {
	return &Client{
		ID:   id,
		User: &domain.User{ID: userID},
		Send: make(chan []byte, 16),
	}
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatalf("client %s received nothing", c.ID)
		return nil
	}
}

func recvEvent(t *testing.T, c *Client) map[string]interface{} {
	t.Helper()
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(recv(t, c), &event))
	return event
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("client %s unexpectedly received %s", c.ID, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastReachesJoinedClientsExceptOrigin(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	sender := newTestClient("c1", "alice")
	receiver := newTestClient("c2", "bob")
	outsider := newTestClient("c3", "carol")
	for _, c := range []*Client{sender, receiver, outsider} {
		h.Register(c)
	}
	h.JoinRoom(sender, "room-1")
	h.JoinRoom(receiver, "room-1")
	h.JoinRoom(outsider, "room-2")

	payload := &domain.NewMessageEvent{Type: domain.EvtNewMessage, RoomID: "room-1"}
	require.NoError(t, h.BroadcastToRoom(ctx, "room-1", domain.EvtNewMessage, payload, sender.ID))

	event := recvEvent(t, receiver)
	assert.Equal(t, domain.EvtNewMessage, event["type"])

	// The origin never receives its own echo, and other rooms hear
	// nothing.
	assertSilent(t, sender)
	assertSilent(t, outsider)
}

func TestMultipleTabsOfOneUserAllReceive(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	tab1 := newTestClient("c1", "alice")
	tab2 := newTestClient("c2", "alice")
	h.Register(tab1)
	h.Register(tab2)
	h.JoinRoom(tab1, "room-1")
	h.JoinRoom(tab2, "room-1")

	payload := &domain.NewMessageEvent{Type: domain.EvtNewMessage, RoomID: "room-1"}
	require.NoError(t, h.BroadcastToRoom(ctx, "room-1", domain.EvtNewMessage, payload, ""))

	recvEvent(t, tab1)
	recvEvent(t, tab2)
}

func TestLeaveRoomStopsDelivery(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	c := newTestClient("c1", "alice")
	h.Register(c)
	h.JoinRoom(c, "room-1")
	h.LeaveRoom(c, "room-1")

	payload := &domain.NewMessageEvent{Type: domain.EvtNewMessage, RoomID: "room-1"}
	require.NoError(t, h.BroadcastToRoom(ctx, "room-1", domain.EvtNewMessage, payload, ""))

	assertSilent(t, c)
	assert.Equal(t, 0, h.RoomClientCount("room-1"))
}

func TestBroadcastOrderPreservedPerRoom(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	c := newTestClient("c1", "alice")
	h.Register(c)
	h.JoinRoom(c, "room-1")

	for i := 0; i < 5; i++ {
		payload := &domain.NewMessageEvent{
			Type:    domain.EvtNewMessage,
			RoomID:  "room-1",
			Message: domain.MessageView{ID: string(rune('a' + i))},
		}
		require.NoError(t, h.BroadcastToRoom(ctx, "room-1", domain.EvtNewMessage, payload, ""))
	}

	for i := 0; i < 5; i++ {
		event := recvEvent(t, c)
		msg := event["message"].(map[string]interface{})
		assert.Equal(t, string(rune('a'+i)), msg["id"])
	}
}

func TestTypingEmitsOnceAndExpires(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	typist := newTestClient("c1", "alice")
	watcher := newTestClient("c2", "bob")
	h.Register(typist)
	h.Register(watcher)
	h.JoinRoom(typist, "room-1")
	h.JoinRoom(watcher, "room-1")

	h.Typing(ctx, "room-1", "alice", typist.ID)
	event := recvEvent(t, watcher)
	assert.Equal(t, domain.EvtUserTyping, event["type"])
	assert.Equal(t, "alice", event["user_id"])
	assert.Equal(t, []string{"alice"}, h.TypingUsers("room-1"))

	// A second typing event within the TTL only extends the mark.
	h.Typing(ctx, "room-1", "alice", typist.ID)
	assertSilent(t, watcher)

	// After the TTL the mark expires and stop-typing is emitted.
	event = recvEvent(t, watcher)
	assert.Equal(t, domain.EvtUserStopTyping, event["type"])
	assert.Empty(t, h.TypingUsers("room-1"))
}

func TestStopTypingExplicit(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	typist := newTestClient("c1", "alice")
	watcher := newTestClient("c2", "bob")
	h.Register(typist)
	h.Register(watcher)
	h.JoinRoom(typist, "room-1")
	h.JoinRoom(watcher, "room-1")

	h.Typing(ctx, "room-1", "alice", typist.ID)
	recvEvent(t, watcher) // user_typing

	h.StopTyping(ctx, "room-1", "alice", typist.ID)
	event := recvEvent(t, watcher)
	assert.Equal(t, domain.EvtUserStopTyping, event["type"])
	assert.Empty(t, h.TypingUsers("room-1"))

	// Stopping again is a no-op.
	h.StopTyping(ctx, "room-1", "alice", typist.ID)
	assertSilent(t, watcher)
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	c := newTestClient("c1", "alice")
	other := newTestClient("c2", "bob")
	h.Register(c)
	h.Register(other)
	h.JoinRoom(c, "room-1")
	h.JoinRoom(c, "room-2")
	h.JoinRoom(other, "room-1")

	h.Unregister(c)

	// Wait for the unregister to be processed.
	require.Eventually(t, func() bool {
		return h.RoomClientCount("room-2") == 0
	}, time.Second, 5*time.Millisecond)

	payload := &domain.NewMessageEvent{Type: domain.EvtNewMessage, RoomID: "room-1"}
	require.NoError(t, h.BroadcastToRoom(ctx, "room-1", domain.EvtNewMessage, payload, ""))
	recvEvent(t, other)
	assert.Equal(t, 1, h.RoomClientCount("room-1"))
}

func TestJoinSurvivesConcurrentRoomPrune(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	// A join racing an unregister that empties the room must still land
	// in the live room map, not on a pruned room object.
	for i := 0; i < 50; i++ {
		churn := newTestClient(fmt.Sprintf("churn-%d", i), "bob")
		h.Register(churn)
		h.JoinRoom(churn, "race-room")

		joiner := newTestClient(fmt.Sprintf("joiner-%d", i), "alice")
		h.Register(joiner)

		done := make(chan struct{})
		go func() {
			h.Unregister(churn)
			close(done)
		}()
		h.JoinRoom(joiner, "race-room")
		<-done

		require.NoError(t, h.BroadcastToRoom(ctx, "race-room", domain.EvtNewMessage, map[string]string{"type": domain.EvtNewMessage}, ""))
		recv(t, joiner)
		h.Unregister(joiner)
	}
}

type capturingPubSub struct {
	mu     sync.Mutex
	events []*pubsub.Event
}

func (p *capturingPubSub) Publish(_ context.Context, _ string, event *pubsub.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPubSub) Subscribe(context.Context, string) (<-chan *pubsub.Event, error) {
	return nil, nil
}

func (p *capturingPubSub) SubscribePattern(context.Context, string) (<-chan *pubsub.Event, error) {
	return nil, nil
}

func (p *capturingPubSub) Unsubscribe(context.Context, string) error { return nil }

func (p *capturingPubSub) Close() error { return nil }

func TestBroadcastMirrorsToBackplane(t *testing.T) {
	ps := &capturingPubSub{}
	h := NewHubWithBackplane(testConfig(), ps, "instance-a")
	go h.Run()

	receiver := newTestClient("c1", "bob")
	h.Register(receiver)
	h.JoinRoom(receiver, "room-1")

	out := &domain.NewMessageEvent{Type: domain.EvtNewMessage, RoomID: "room-1"}
	require.NoError(t, h.BroadcastToRoom(context.Background(), "room-1", domain.EvtNewMessage, out, ""))
	recv(t, receiver)

	ps.mu.Lock()
	defer ps.mu.Unlock()
	require.Len(t, ps.events, 1)
	event := ps.events[0]
	assert.Equal(t, domain.EvtNewMessage, event.Type)
	assert.Equal(t, "room-1", event.RoomID)
	assert.Equal(t, "instance-a", event.Origin)
	assert.False(t, event.Timestamp.IsZero())

	var payload domain.NewMessageEvent
	require.NoError(t, event.UnmarshalPayload(&payload))
	assert.Equal(t, domain.EvtNewMessage, payload.Type)
}
