package client

import "log"

// Level tells a UI how to present a notification.
type Level int

const (
	LevelSuccess Level = iota
	LevelError
)

// Notification is the single user-visible message produced by a store call.
type Notification struct {
	Level   Level
	Op      Op
	Message string
	Err     error
}

// Notifier receives store notifications. It is called after the collection
// has settled, outside the Store's lock.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// LogNotifier writes notifications to the standard logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notification) {
	if n.Level == LevelError {
		log.Printf("[warn] %s: %v", n.Message, n.Err)
		return
	}
	log.Printf("[info] %s", n.Message)
}

var (
	successMessages = map[Op]string{
		OpCreate: "Task created successfully!",
		OpUpdate: "Task updated successfully!",
		OpDelete: "Task deleted successfully!",
	}
	failureMessages = map[Op]string{
		OpFetch:  "Failed to fetch tasks",
		OpCreate: "Failed to create task",
		OpUpdate: "Failed to update task",
		OpDelete: "Failed to delete task",
	}
)
