package realtime

import "encoding/json"

// Session events delivered to a single socket.
const (
	EventAuthSuccess = "auth-success"
	EventAuthFailed  = "auth-failed"
	EventJoined      = "joined"
	EventJoinDenied  = "join-denied"
	EventJoinError   = "join-error"
	EventLeft        = "left"
)

// Domain events broadcast into rooms (or globally for the project
// lifecycle ones).
const (
	EventTaskCreated    = "task:created"
	EventTaskUpdated    = "task:updated"
	EventTaskReordered  = "task:reordered"
	EventTaskDeleted    = "task:deleted"
	EventTaskMoved      = "task:moved"
	EventProjectCreated = "project:created"
	EventProjectUpdated = "project:updated"
	EventProjectDeleted = "project:deleted"
	EventSummaryReady   = "ai:summary:ready"
)

// Client-originated message names.
const (
	msgAuthenticate = "authenticate"
	msgJoinProject  = "joinProject"
	msgLeaveProject = "leaveProject"
	msgTaskMoved    = "taskMoved"
)

// Envelope is the wire shape of every realtime message in both
// directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomName returns the room a project's events are published into.
func RoomName(projectID string) string {
	return "project:" + projectID
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type projectPayload struct {
	ProjectID string `json:"projectId"`
}

type joinDeniedPayload struct {
	ProjectID string `json:"projectId"`
	Reason    string `json:"reason"`
}

type joinErrorPayload struct {
	ProjectID string `json:"projectId"`
	Message   string `json:"message"`
}

type taskMovedPayload struct {
	TaskID       string `json:"taskId"`
	FromColumnID string `json:"fromColumnId"`
	ToColumnID   string `json:"toColumnId"`
	ProjectID    string `json:"projectId"`
}
