package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"taskflow/internal/model"
)

// fakeAPI is an in-memory TasksAPI. before runs ahead of every call and may
// block or return an error to fail that call.
type fakeAPI struct {
	mu     sync.Mutex
	tasks  []model.Task
	ids    []string
	seq    int
	clock  time.Time
	calls  map[string]int
	before func(ctx context.Context, op string, n int) error
}

func newFakeAPI(tasks ...model.Task) *fakeAPI {
	return &fakeAPI{
		tasks: tasks,
		clock: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		calls: make(map[string]int),
	}
}

func (f *fakeAPI) hook(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	n := f.calls[op]
	before := f.before
	f.mu.Unlock()
	if before != nil {
		return before(ctx, op, n)
	}
	return nil
}

func (f *fakeAPI) callCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]model.Task, error) {
	if err := f.hook(ctx, "list"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Task(nil), f.tasks...), nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, fields TaskFields) (model.Task, error) {
	if err := f.hook(ctx, "create"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	id := ""
	if len(f.ids) > 0 {
		id, f.ids = f.ids[0], f.ids[1:]
	} else {
		f.seq++
		id = fmt.Sprintf("srv-%d", f.seq)
	}
	now := f.tick()
	task := model.Task{
		ID:          id,
		Title:       fields.Title,
		Description: fields.Description,
		Status:      fields.Status,
		Priority:    fields.Priority,
		UserID:      "u1",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	f.tasks = append([]model.Task{task}, f.tasks...)
	return task, nil
}

func (f *fakeAPI) UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error) {
	if err := f.hook(ctx, "update"); err != nil {
		return model.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID != id {
			continue
		}
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Description != nil {
			t.Description = patch.Description
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		t.UpdatedAt = f.tick()
		f.tasks[i] = t
		return t, nil
	}
	return model.Task{}, &APIError{Kind: ErrNotFound, Status: 404, Message: "Task not found"}
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id string) error {
	if err := f.hook(ctx, "delete"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return &APIError{Kind: ErrNotFound, Status: 404, Message: "Task not found"}
}

// gate parks one API call until the test releases it.
type gate struct {
	entered chan struct{}
	release chan error
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 1), release: make(chan error, 1)}
}

func (g *gate) wait(ctx context.Context) error {
	g.entered <- struct{}{}
	select {
	case err := <-g.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// gates routes the n-th call of op to its gate; other calls pass through.
type gates map[string]*gate

func (gs gates) before(ctx context.Context, op string, n int) error {
	if g, ok := gs[fmt.Sprintf("%s#%d", op, n)]; ok {
		return g.wait(ctx)
	}
	return nil
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notes...)
}

func seedTask(id, title string, status model.Status, minute int) model.Task {
	at := time.Date(2026, 1, 1, 8, minute, 0, 0, time.UTC)
	return model.Task{ID: id, Title: title, Status: status, Priority: model.PriorityMedium, UserID: "u1", CreatedAt: at, UpdatedAt: at}
}
