package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(hub *Hub) *Session {
	return newSession(zerolog.Nop(), hub, newFakeConn(), nil, nil, 8)
}

func drainOne(t *testing.T, s *Session) Envelope {
	t.Helper()
	select {
	case msg := <-s.send:
		var env Envelope
		require.NoError(t, json.Unmarshal(msg, &env))
		return env
	default:
		t.Fatal("no frame enqueued")
		return Envelope{}
	}
}

func TestPublishReachesOnlyJoinedSessions(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	joined := testSession(hub)
	outsider := testSession(hub)
	hub.register(joined)
	hub.register(outsider)
	hub.join(RoomName("p1"), joined)

	hub.Publish("p1", EventTaskCreated, map[string]string{"id": "t1"})

	env := drainOne(t, joined)
	assert.Equal(t, EventTaskCreated, env.Event)
	assert.JSONEq(t, `{"id":"t1"}`, string(env.Data))

	select {
	case <-outsider.send:
		t.Fatal("socket outside the room received a room event")
	default:
	}
}

func TestPublishAllReachesEveryConnectedSocket(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := testSession(hub)
	b := testSession(hub)
	hub.register(a)
	hub.register(b)
	hub.join(RoomName("p1"), a)

	hub.PublishAll(EventProjectDeleted, map[string]string{"id": "p9"})

	assert.Equal(t, EventProjectDeleted, drainOne(t, a).Event)
	assert.Equal(t, EventProjectDeleted, drainOne(t, b).Event)
}

func TestPublishRoomSkipsSender(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	sender := testSession(hub)
	receiver := testSession(hub)
	hub.register(sender)
	hub.register(receiver)
	hub.join(RoomName("p1"), sender)
	hub.join(RoomName("p1"), receiver)

	hub.publishRoom(RoomName("p1"), sender, EventTaskMoved, taskMovedPayload{TaskID: "t1", ProjectID: "p1"})

	assert.Equal(t, EventTaskMoved, drainOne(t, receiver).Event)
	select {
	case <-sender.send:
		t.Fatal("relayed event echoed back to its sender")
	default:
	}
}

func TestUnregisterDropsAllRoomMemberships(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := testSession(hub)
	hub.register(s)
	hub.join(RoomName("p1"), s)
	hub.join(RoomName("p2"), s)

	hub.unregister(s)

	assert.False(t, hub.inRoom(RoomName("p1"), s))
	assert.False(t, hub.inRoom(RoomName("p2"), s))
	assert.Empty(t, hub.rooms)
	assert.Empty(t, hub.sessions)
}

func TestLeaveUnknownRoomIsNoop(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := testSession(hub)
	hub.register(s)

	hub.leave(RoomName("missing"), s)
}

func TestPublishOnNilHubPanics(t *testing.T) {
	var hub *Hub
	assert.PanicsWithValue(t, "realtime: publish before hub is initialized", func() {
		hub.Publish("p1", EventTaskCreated, nil)
	})
	assert.PanicsWithValue(t, "realtime: publish before hub is initialized", func() {
		hub.PublishAll(EventProjectCreated, nil)
	})
}

func TestEnqueueDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := newSession(zerolog.Nop(), hub, newFakeConn(), nil, nil, 1)
	hub.register(s)
	hub.join(RoomName("p1"), s)

	hub.Publish("p1", EventTaskCreated, map[string]string{"id": "t1"})
	hub.Publish("p1", EventTaskCreated, map[string]string{"id": "t2"})

	env := drainOne(t, s)
	assert.JSONEq(t, `{"id":"t1"}`, string(env.Data))
	select {
	case <-s.send:
		t.Fatal("overflowing frame should have been dropped")
	default:
	}
}
