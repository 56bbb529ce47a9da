package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Conn is the slice of a websocket connection the session needs;
// *websocket.Conn satisfies it, tests substitute a fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Identity is what a verified bearer token asserts about a socket.
type Identity struct {
	UserID string
	Name   string
}

// TokenVerifier checks a bearer credential's signature and expiry.
type TokenVerifier func(token string) (Identity, error)

// MembershipChecker gates every room join; satisfied by
// services.MembershipService.
type MembershipChecker interface {
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
}

// Session drives one connection through the lifecycle state machine.
// All inbound messages for a connection are handled sequentially on
// its read loop; only the auth timer races it, which dispatch
// serializes with a mutex.
type Session struct {
	id     string
	logger zerolog.Logger

	hub        *Hub
	conn       Conn
	verify     TokenVerifier
	membership MembershipChecker

	send chan []byte
	done chan struct{}

	mu        sync.Mutex
	state     State
	userID    string
	name      string
	authTimer *time.Timer

	closeOnce sync.Once
}

func newSession(
	logger zerolog.Logger,
	hub *Hub,
	conn Conn,
	verify TokenVerifier,
	membership MembershipChecker,
	sendBufferLen int,
) *Session {
	id := uuid.NewString()
	return &Session{
		id:         id,
		logger:     logger.With().Str("sid", id).Logger(),
		hub:        hub,
		conn:       conn,
		verify:     verify,
		membership: membership,
		send:       make(chan []byte, sendBufferLen),
		done:       make(chan struct{}),
		state:      StateConnected,
	}
}

// run blocks until the connection dies. authTimeout is the grace
// period for the authenticate handshake.
func (s *Session) run(authTimeout time.Duration) {
	s.hub.register(s)
	s.logger.Info().Msg("socket connected")

	s.authTimer = time.AfterFunc(authTimeout, func() {
		s.dispatch(AuthExpired{})
	})

	go s.writeLoop()
	s.readLoop()
}

func (s *Session) readLoop() {
	defer s.teardown("transport closed")
	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			s.dispatch(ConnClosed{})
			return
		}
		s.handleMessage(msg)
	}
}

func (s *Session) writeLoop() {
	for {
		select {
		case msg := <-s.send:
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-s.done:
			// Flush whatever was queued before shutdown, e.g. the
			// auth-failed frame enqueued right before a terminate.
			for {
				select {
				case msg := <-s.send:
					if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// enqueue hands a pre-encoded frame to the writer. Delivery is
// at-most-once and best-effort: a full buffer means the frame is
// dropped for this socket.
func (s *Session) enqueue(msg []byte) {
	select {
	case s.send <- msg:
	case <-s.done:
	default:
		s.logger.Warn().Msg("send buffer full, dropping frame")
	}
}

func (s *Session) handleMessage(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Debug().
			Err(err).
			Msg("discarding malformed frame")
		return
	}

	switch env.Event {
	case msgAuthenticate:
		s.handleAuthenticate(env.Data)
	case msgJoinProject:
		s.handleJoin(env.Data)
	case msgLeaveProject:
		s.handleLeave(env.Data)
	case msgTaskMoved:
		s.handleTaskMoved(env.Data)
	default:
		s.logger.Debug().
			Str("event", env.Event).
			Msg("ignoring unknown event")
	}
}

func (s *Session) handleAuthenticate(data json.RawMessage) {
	var payload authenticatePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.Token == "" {
		s.dispatch(AuthRejected{Reason: "missing token"})
		return
	}

	identity, err := s.verify(stripBearer(payload.Token))
	if err != nil {
		s.logger.Warn().
			Err(err).
			Msg("socket authentication failed")
		s.dispatch(AuthRejected{Reason: err.Error()})
		return
	}
	s.dispatch(AuthVerified{UserID: identity.UserID, Name: identity.Name})
}

func (s *Session) handleJoin(data json.RawMessage) {
	var payload projectPayload
	_ = json.Unmarshal(data, &payload)

	in := JoinRequested{ProjectID: payload.ProjectID}

	s.mu.Lock()
	authenticated := s.state == StateAuthenticated
	userID := s.userID
	s.mu.Unlock()

	// Resolve the authorization facts before stepping the machine;
	// the membership read hits current state on every join.
	if authenticated {
		if _, err := uuid.Parse(payload.ProjectID); err == nil {
			in.ValidID = true
			member, err := s.membership.IsMember(context.Background(), payload.ProjectID, userID)
			if err != nil {
				in.CheckErr = "unable to join project"
			} else {
				in.Member = member
			}
		}
	}
	s.dispatch(in)
}

func (s *Session) handleLeave(data json.RawMessage) {
	var payload projectPayload
	_ = json.Unmarshal(data, &payload)
	if payload.ProjectID == "" {
		return
	}
	s.dispatch(LeaveRequested{ProjectID: payload.ProjectID})
}

// handleTaskMoved relays a client's cross-column move notification to
// the rest of the room. The relay is only honored for rooms this
// socket actually joined: membership was verified at join time, so a
// socket cannot inject events into arbitrary projects.
func (s *Session) handleTaskMoved(data json.RawMessage) {
	var payload taskMovedPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.ProjectID == "" {
		return
	}

	room := RoomName(payload.ProjectID)
	if !s.hub.inRoom(room, s) {
		s.logger.Warn().
			Str("room", room).
			Msg("dropping relay for unjoined room")
		return
	}
	s.hub.publishRoom(room, s, EventTaskMoved, payload)
}

// dispatch steps the state machine and applies the effects. It is the
// only place session state mutates.
func (s *Session) dispatch(in Input) {
	s.mu.Lock()
	next, effects := Step(s.state, in)
	s.state = next

	var sends [][]byte
	terminate := false
	var terminateReason string

	for _, effect := range effects {
		switch e := effect.(type) {
		case CancelAuthTimer:
			if s.authTimer != nil {
				s.authTimer.Stop()
			}
		case SetIdentity:
			s.userID = e.UserID
			s.name = e.Name
		case Send:
			msg, err := encodeEnvelope(e.Event, e.Data)
			if err != nil {
				s.logger.Error().
					Err(err).
					Str("event", e.Event).
					Msg("failed to encode session event")
				continue
			}
			sends = append(sends, msg)
		case EnterRoom:
			s.hub.join(e.Room, s)
			s.logger.Info().
				Str("room", e.Room).
				Str("user_id", s.userID).
				Msg("joined room")
		case ExitRoom:
			s.hub.leave(e.Room, s)
			s.logger.Info().
				Str("room", e.Room).
				Msg("left room")
		case Terminate:
			terminate = true
			terminateReason = e.Reason
		}
	}
	s.mu.Unlock()

	for _, msg := range sends {
		s.enqueue(msg)
	}
	if terminate {
		s.teardown(terminateReason)
	}
}

// teardown closes the transport and drops all room memberships; safe
// to call from any goroutine, idempotent.
func (s *Session) teardown(reason string) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateTerminated
		if s.authTimer != nil {
			s.authTimer.Stop()
		}
		s.mu.Unlock()

		s.hub.unregister(s)
		close(s.done)
		_ = s.conn.Close()
		s.logger.Info().
			Str("reason", reason).
			Msg("socket disconnected")
	})
}

func stripBearer(token string) string {
	return strings.TrimPrefix(token, "Bearer ")
}
