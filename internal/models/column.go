package models

import "time"

const (
	ColumnKeyTodo       = "todo"
	ColumnKeyInProgress = "in_progress"
	ColumnKeyDone       = "done"
	ColumnKeyCustom     = "custom"
)

type Column struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"projectId"`
	Key       string    `json:"key"`
	Name      string    `json:"name"`
	Order     int64     `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
