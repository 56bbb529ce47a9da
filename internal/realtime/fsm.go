package realtime

// The connection lifecycle is a small state machine. Step is pure: the
// session driver resolves anything requiring I/O (token verification,
// the membership lookup) before feeding an input, and applies the
// returned effects to the transport and the hub afterwards. This keeps
// every authorization decision testable without a socket.

type State int

const (
	// StateConnected: transport is up, nobody has proven who they are.
	StateConnected State = iota
	// StateAuthenticated: the socket carries a verified identity and
	// may join project rooms.
	StateAuthenticated
	// StateTerminated: the connection is gone; inputs are ignored.
	StateTerminated
)

type Input interface{ isInput() }

// AuthVerified: the client presented a credential that checked out.
type AuthVerified struct {
	UserID string
	Name   string
}

// AuthRejected: missing, malformed, expired or forged credential.
type AuthRejected struct {
	Reason string
}

// AuthExpired: the grace timer fired before a successful authenticate.
type AuthExpired struct{}

// JoinRequested carries the pre-resolved authorization facts for a
// join attempt. Member and CheckErr are only meaningful when the
// session was authenticated and ValidID is true.
type JoinRequested struct {
	ProjectID string
	ValidID   bool
	Member    bool
	CheckErr  string
}

// LeaveRequested: the client wants out of a project room.
type LeaveRequested struct {
	ProjectID string
}

// ConnClosed: the transport went away.
type ConnClosed struct{}

func (AuthVerified) isInput()   {}
func (AuthRejected) isInput()   {}
func (AuthExpired) isInput()    {}
func (JoinRequested) isInput()  {}
func (LeaveRequested) isInput() {}
func (ConnClosed) isInput()     {}

type Effect interface{ isEffect() }

// CancelAuthTimer stops the authentication grace timer.
type CancelAuthTimer struct{}

// SetIdentity stores the verified identity on the session.
type SetIdentity struct {
	UserID string
	Name   string
}

// Send emits one event to this socket.
type Send struct {
	Event string
	Data  any
}

// EnterRoom / ExitRoom mutate the socket's room membership.
type EnterRoom struct{ Room string }
type ExitRoom struct{ Room string }

// Terminate closes the transport.
type Terminate struct{ Reason string }

func (CancelAuthTimer) isEffect() {}
func (SetIdentity) isEffect()     {}
func (Send) isEffect()            {}
func (EnterRoom) isEffect()       {}
func (ExitRoom) isEffect()        {}
func (Terminate) isEffect()       {}

// Step advances the connection state machine.
func Step(state State, in Input) (State, []Effect) {
	if state == StateTerminated {
		return StateTerminated, nil
	}

	switch in := in.(type) {
	case AuthVerified:
		effects := []Effect{
			SetIdentity{UserID: in.UserID, Name: in.Name},
			Send{Event: EventAuthSuccess},
		}
		if state == StateConnected {
			effects = append([]Effect{CancelAuthTimer{}}, effects...)
		}
		return StateAuthenticated, effects

	case AuthRejected:
		// One failed authenticate kills the socket; no retry on the
		// same connection.
		return StateTerminated, []Effect{
			CancelAuthTimer{},
			Send{Event: EventAuthFailed, Data: in.Reason},
			Terminate{Reason: in.Reason},
		}

	case AuthExpired:
		if state != StateConnected {
			// Raced a successful authenticate; the timer lost.
			return state, nil
		}
		return StateTerminated, []Effect{
			Send{Event: EventAuthFailed, Data: "timeout"},
			Terminate{Reason: "timeout"},
		}

	case JoinRequested:
		if state != StateAuthenticated {
			return state, []Effect{
				Send{Event: EventJoinDenied, Data: joinDeniedPayload{
					ProjectID: in.ProjectID,
					Reason:    "not authenticated",
				}},
			}
		}
		if !in.ValidID {
			return state, []Effect{
				Send{Event: EventJoinError, Data: joinErrorPayload{
					ProjectID: in.ProjectID,
					Message:   "invalid projectId",
				}},
			}
		}
		if in.CheckErr != "" {
			return state, []Effect{
				Send{Event: EventJoinError, Data: joinErrorPayload{
					ProjectID: in.ProjectID,
					Message:   in.CheckErr,
				}},
			}
		}
		if !in.Member {
			return state, []Effect{
				Send{Event: EventJoinDenied, Data: joinDeniedPayload{
					ProjectID: in.ProjectID,
					Reason:    "forbidden",
				}},
			}
		}
		return state, []Effect{
			EnterRoom{Room: RoomName(in.ProjectID)},
			Send{Event: EventJoined, Data: projectPayload{ProjectID: in.ProjectID}},
		}

	case LeaveRequested:
		// Leaving a room never requires authorization; leaving a room
		// the socket is not in is a no-op at the hub.
		return state, []Effect{
			ExitRoom{Room: RoomName(in.ProjectID)},
			Send{Event: EventLeft, Data: projectPayload{ProjectID: in.ProjectID}},
		}

	case ConnClosed:
		return StateTerminated, []Effect{CancelAuthTimer{}}
	}

	return state, nil
}
