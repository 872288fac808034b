// Package client talks to the TaskFlow REST API and keeps an optimistic,
// locally mutated copy of the signed-in user's tasks.
package client

import (
	"time"

	"taskflow/internal/model"
)

// TaskID identifies a task in the local collection. A pending id belongs to a
// row the server has not confirmed yet; a confirmed id is the server's id.
// The two never compare equal, whatever their string values.
type TaskID struct {
	value   string
	pending bool
}

// Pending wraps a locally generated placeholder id.
func Pending(localID string) TaskID {
	return TaskID{value: localID, pending: true}
}

// Confirmed wraps a server-assigned id.
func Confirmed(serverID string) TaskID {
	return TaskID{value: serverID}
}

func (id TaskID) IsPending() bool {
	return id.pending
}

// ServerID returns the server id, or false while the row is still pending.
func (id TaskID) ServerID() (string, bool) {
	if id.pending {
		return "", false
	}
	return id.value, true
}

func (id TaskID) String() string {
	if id.pending {
		return "pending:" + id.value
	}
	return id.value
}

// Task is the client-side view of a task row.
type Task struct {
	ID          TaskID
	Title       string
	Description *string
	Status      model.Status
	Priority    model.Priority
	UserID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func fromModel(t model.Task) Task {
	return Task{
		ID:          Confirmed(t.ID),
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		UserID:      t.UserID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// TaskFields is the body of a create request.
type TaskFields struct {
	Title       string         `json:"title"`
	Description *string        `json:"description,omitempty"`
	Status      model.Status   `json:"status,omitempty"`
	Priority    model.Priority `json:"priority,omitempty"`
}

// TaskPatch is the body of an update request; nil fields are left alone.
type TaskPatch struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *model.Status   `json:"status,omitempty"`
	Priority    *model.Priority `json:"priority,omitempty"`
}

// apply shallow-merges p onto t.
func (p TaskPatch) apply(t Task) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	return t
}
