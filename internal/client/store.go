package client

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"taskflow/internal/model"
)

// TasksAPI is the part of the REST API the Store depends on.
type TasksAPI interface {
	ListTasks(ctx context.Context) ([]model.Task, error)
	CreateTask(ctx context.Context, fields TaskFields) (model.Task, error)
	UpdateTask(ctx context.Context, id string, patch TaskPatch) (model.Task, error)
	DeleteTask(ctx context.Context, id string) error
}

// Op names a store operation that talks to the server.
type Op string

const (
	OpFetch  Op = "fetch"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// State is the lifecycle of one mutation: Idle -> Optimistic -> Confirmed | RolledBack.
type State int

const (
	StateIdle State = iota
	StateOptimistic
	StateConfirmed
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StateConfirmed:
		return "confirmed"
	case StateRolledBack:
		return "rolled back"
	}
	return "unknown"
}

// Outcome is the terminal result of a mutation. Err is a *MutationError when
// State is StateRolledBack. A call rejected before any optimistic change is
// also reported as rolled back, with the collection untouched.
type Outcome struct {
	Op    Op
	State State
	Task  Task
	Err   error
}

func (o Outcome) OK() bool {
	return o.State == StateConfirmed
}

// Filter restricts View to one status.
type Filter string

const FilterAll Filter = "ALL"

func (f Filter) valid() bool {
	return f == FilterAll || model.Status(f).Valid()
}

// RollbackPolicy decides what a failed update or delete restores.
type RollbackPolicy int

const (
	// RollbackSnapshot restores the whole collection as it was right before
	// the call. Optimistic changes made to other rows in the meantime are lost.
	RollbackSnapshot RollbackPolicy = iota
	// RollbackRow restores only the targeted row.
	RollbackRow
)

// View is what a dashboard renders.
type View struct {
	Filter Filter
	Tasks  []Task
	Stats  model.Stats
}

// Option configures a Store.
type Option func(*Store)

func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithRollback(p RollbackPolicy) Option {
	return func(s *Store) { s.rollback = p }
}

// WithTimeout bounds every server call. Without it a hung call leaves its row
// optimistic until the caller's context ends.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

func withClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func withLocalIDs(next func() string) Option {
	return func(s *Store) { s.newLocalID = next }
}

// Store is the local, optimistically mutated copy of the user's tasks,
// ordered most recent first. The mutex is held only while reading or writing
// the collection, never across a server call.
type Store struct {
	api        TasksAPI
	notifier   Notifier
	rollback   RollbackPolicy
	timeout    time.Duration
	now        func() time.Time
	newLocalID func() string

	mu      sync.Mutex
	tasks   []Task
	filter  Filter
	loading int
	closed  bool
}

func NewStore(api TasksAPI, opts ...Option) *Store {
	s := &Store{
		api:        api,
		notifier:   NotifierFunc(func(Notification) {}),
		now:        time.Now,
		newLocalID: uuid.NewString,
		filter:     FilterAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh replaces the collection with the server's list. On failure the
// collection is left as it was.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.fetchFailed(ErrLoggedOut)
	}
	s.loading++
	s.mu.Unlock()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	list, err := s.api.ListTasks(ctx)

	s.mu.Lock()
	s.loading--
	if err == nil && s.closed {
		err = ErrLoggedOut
	}
	if err == nil {
		s.tasks = make([]Task, 0, len(list))
		for _, t := range list {
			s.tasks = append(s.tasks, fromModel(t))
		}
	}
	s.mu.Unlock()

	if err != nil {
		return s.fetchFailed(err)
	}
	return nil
}

func (s *Store) fetchFailed(err error) error {
	merr := &MutationError{Op: OpFetch, Err: err}
	s.notifyFailure(OpFetch, merr)
	return merr
}

// Create inserts a pending row at the head, asks the server to create the
// task and then swaps the pending row for the server's copy, or drops it.
func (s *Store) Create(ctx context.Context, fields TaskFields) Outcome {
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return s.reject(OpCreate, validationError("title", "Title is required"))
	}
	if err := validateEnums(fields.Status, fields.Priority); err != nil {
		return s.reject(OpCreate, err)
	}

	now := s.now()
	provisional := Task{
		Title:       fields.Title,
		Description: fields.Description,
		Status:      fields.Status,
		Priority:    fields.Priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if provisional.Status == "" {
		provisional.Status = model.StatusTodo
	}
	if provisional.Priority == "" {
		provisional.Priority = model.PriorityMedium
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.reject(OpCreate, ErrLoggedOut)
	}
	provisional.ID = s.uniquePendingID()
	s.tasks = slices.Insert(s.tasks, 0, provisional)
	s.mu.Unlock()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	created, err := s.api.CreateTask(ctx, fields)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.finish(rolledBack(OpCreate, provisional, ErrLoggedOut))
	}
	idx := s.indexOf(provisional.ID)
	if err != nil {
		if idx >= 0 {
			s.tasks = slices.Delete(s.tasks, idx, idx+1)
		}
		s.mu.Unlock()
		return s.finish(rolledBack(OpCreate, provisional, err))
	}

	confirmed := fromModel(created)
	switch {
	case idx >= 0:
		s.tasks[idx] = confirmed
	case s.indexOf(confirmed.ID) < 0:
		// A refresh replaced the collection while the call was in flight
		// and did not see the new row yet.
		s.tasks = slices.Insert(s.tasks, 0, confirmed)
	}
	s.mu.Unlock()
	return s.finish(Outcome{Op: OpCreate, State: StateConfirmed, Task: confirmed})
}

// Update merges patch into the row, sends it to the server and replaces the
// row with the server's copy, or rolls back according to the policy.
func (s *Store) Update(ctx context.Context, id TaskID, patch TaskPatch) Outcome {
	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		if trimmed == "" {
			return s.reject(OpUpdate, validationError("title", "Title is required"))
		}
		patch.Title = &trimmed
	}
	var status model.Status
	var priority model.Priority
	if patch.Status != nil {
		status = *patch.Status
	}
	if patch.Priority != nil {
		priority = *patch.Priority
	}
	if err := validateEnums(status, priority); err != nil {
		return s.reject(OpUpdate, err)
	}

	serverID, ok := id.ServerID()
	if !ok {
		return s.reject(OpUpdate, validationError("id", "Task is not saved yet"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.reject(OpUpdate, ErrLoggedOut)
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return s.reject(OpUpdate, &APIError{Kind: ErrNotFound, Message: "Task not found"})
	}
	snapshot := slices.Clone(s.tasks)
	before := s.tasks[idx]
	s.tasks[idx] = patch.apply(before)
	s.mu.Unlock()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	updated, err := s.api.UpdateTask(ctx, serverID, patch)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.finish(rolledBack(OpUpdate, before, ErrLoggedOut))
	}
	if err != nil {
		s.revertRow(snapshot, before)
		s.mu.Unlock()
		return s.finish(rolledBack(OpUpdate, before, err))
	}

	confirmed := fromModel(updated)
	if i := s.indexOf(id); i >= 0 {
		s.tasks[i] = confirmed
	}
	s.mu.Unlock()
	return s.finish(Outcome{Op: OpUpdate, State: StateConfirmed, Task: confirmed})
}

// Delete removes the row, asks the server to delete it and puts it back on
// failure.
func (s *Store) Delete(ctx context.Context, id TaskID) Outcome {
	serverID, ok := id.ServerID()
	if !ok {
		return s.reject(OpDelete, validationError("id", "Task is not saved yet"))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.reject(OpDelete, ErrLoggedOut)
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return s.reject(OpDelete, &APIError{Kind: ErrNotFound, Message: "Task not found"})
	}
	snapshot := slices.Clone(s.tasks)
	removed := s.tasks[idx]
	s.tasks = slices.Delete(s.tasks, idx, idx+1)
	s.mu.Unlock()

	ctx, cancel := s.callContext(ctx)
	defer cancel()
	err := s.api.DeleteTask(ctx, serverID)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.finish(rolledBack(OpDelete, removed, ErrLoggedOut))
	}
	if err != nil {
		s.reinsertRow(snapshot, removed, idx)
		s.mu.Unlock()
		return s.finish(rolledBack(OpDelete, removed, err))
	}
	s.mu.Unlock()
	return s.finish(Outcome{Op: OpDelete, State: StateConfirmed, Task: removed})
}

// SetFilter changes which tasks View returns. It never talks to the server.
func (s *Store) SetFilter(f Filter) error {
	if !f.valid() {
		return validationError("filter", "Invalid filter")
	}
	s.mu.Lock()
	s.filter = f
	s.mu.Unlock()
	return nil
}

// View returns the filtered tasks and stats over the whole collection.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{Filter: s.filter, Tasks: make([]Task, 0, len(s.tasks))}
	for _, t := range s.tasks {
		v.Stats.Total++
		switch t.Status {
		case model.StatusTodo:
			v.Stats.Todo++
		case model.StatusInProgress:
			v.Stats.InProgress++
		case model.StatusDone:
			v.Stats.Done++
		}
		if s.filter == FilterAll || Filter(t.Status) == s.filter {
			v.Tasks = append(v.Tasks, t)
		}
	}
	return v
}

// Tasks returns the unfiltered collection.
func (s *Store) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tasks)
}

// Loading reports whether a Refresh is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// discard empties the collection and fails every later call with
// ErrLoggedOut. Calls in flight finish without touching the collection.
func (s *Store) discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.tasks = nil
	s.filter = FilterAll
}

// revertRow undoes a failed update. Under RollbackRow a row that is no
// longer in the collection stays gone. Callers hold s.mu.
func (s *Store) revertRow(snapshot []Task, row Task) {
	if s.rollback == RollbackSnapshot {
		s.tasks = snapshot
		return
	}
	if i := s.indexOf(row.ID); i >= 0 {
		s.tasks[i] = row
	}
}

// reinsertRow undoes a failed delete, putting the row back near its old
// position. Callers hold s.mu.
func (s *Store) reinsertRow(snapshot []Task, row Task, idx int) {
	if s.rollback == RollbackSnapshot {
		s.tasks = snapshot
		return
	}
	if i := s.indexOf(row.ID); i >= 0 {
		s.tasks[i] = row
		return
	}
	s.tasks = slices.Insert(s.tasks, min(idx, len(s.tasks)), row)
}

func (s *Store) indexOf(id TaskID) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}

func (s *Store) uniquePendingID() TaskID {
	for {
		id := Pending(s.newLocalID())
		if s.indexOf(id) < 0 {
			return id
		}
	}
}

func (s *Store) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return ctx, func() {}
}

func (s *Store) reject(op Op, err error) Outcome {
	return s.finish(Outcome{Op: op, State: StateRolledBack, Err: &MutationError{Op: op, Err: err}})
}

func rolledBack(op Op, task Task, err error) Outcome {
	return Outcome{Op: op, State: StateRolledBack, Task: task, Err: &MutationError{Op: op, Err: err}}
}

// finish emits the one notification of a call. s.mu must not be held.
func (s *Store) finish(out Outcome) Outcome {
	if out.State == StateConfirmed {
		s.notifier.Notify(Notification{Level: LevelSuccess, Op: out.Op, Message: successMessages[out.Op]})
	} else {
		s.notifyFailure(out.Op, out.Err)
	}
	return out
}

func (s *Store) notifyFailure(op Op, err error) {
	s.notifier.Notify(Notification{Level: LevelError, Op: op, Message: failureMessages[op], Err: err})
}

func validateEnums(status model.Status, priority model.Priority) error {
	if status != "" && !status.Valid() {
		return validationError("status", "Invalid status")
	}
	if priority != "" && !priority.Valid() {
		return validationError("priority", "Invalid priority")
	}
	return nil
}
