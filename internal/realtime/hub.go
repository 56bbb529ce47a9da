package realtime

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// Broadcaster is what mutation handlers publish through. It is an
// explicit dependency of every handler that emits events; nothing in
// the codebase reaches for a package-level hub.
type Broadcaster interface {
	// Publish delivers the event to every socket joined to the
	// project's room at the time of the call. Best-effort: slow
	// consumers are skipped, nothing is replayed.
	Publish(projectID, event string, data any)

	// PublishAll delivers the event to every connected socket; used
	// for project lifecycle events, which are not room-scoped.
	PublishAll(event string, data any)
}

// Hub owns the socket <-> room table. Sessions mutate it only through
// join/leave/unregister; broadcasts take a read snapshot.
type Hub struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	rooms    map[string]map[*Session]struct{}
	sessions map[*Session]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger,
		rooms:    make(map[string]map[*Session]struct{}),
		sessions: make(map[*Session]struct{}),
	}
}

// mustBeInitialized makes a publish on an unconstructed hub fail
// loudly: it means routes were registered before the realtime layer
// was set up.
func (h *Hub) mustBeInitialized() {
	if h == nil {
		panic("realtime: publish before hub is initialized")
	}
}

func (h *Hub) Publish(projectID, event string, data any) {
	h.mustBeInitialized()
	h.publishRoom(RoomName(projectID), nil, event, data)
}

func (h *Hub) PublishAll(event string, data any) {
	h.mustBeInitialized()

	msg, err := encodeEnvelope(event, data)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", event).
			Msg("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	targets := make([]*Session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(msg)
	}
	h.logger.Debug().
		Str("event", event).
		Int("sockets", len(targets)).
		Msg("broadcast to all")
}

// publishRoom sends to every member of the room, skipping except (used
// for client-relayed events, which echo to everyone but the sender).
func (h *Hub) publishRoom(room string, except *Session, event string, data any) {
	msg, err := encodeEnvelope(event, data)
	if err != nil {
		h.logger.Error().
			Err(err).
			Str("event", event).
			Msg("failed to encode broadcast")
		return
	}

	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Session, 0, len(members))
	for s := range members {
		if s != except {
			targets = append(targets, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range targets {
		s.enqueue(msg)
	}
	h.logger.Debug().
		Str("event", event).
		Str("room", room).
		Int("sockets", len(targets)).
		Msg("broadcast to room")
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

// unregister drops the session and all of its room memberships.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	delete(h.sessions, s)
	for room, members := range h.rooms {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) join(room string, s *Session) {
	h.mu.Lock()
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		h.rooms[room] = members
	}
	members[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leave(room string, s *Session) {
	h.mu.Lock()
	if members, ok := h.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()
}

// inRoom reports whether the session currently belongs to the room.
// Read by the relay path before forwarding client events.
func (h *Hub) inRoom(room string, s *Session) bool {
	h.mu.RLock()
	_, ok := h.rooms[room][s]
	h.mu.RUnlock()
	return ok
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
