package service

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

type fixture struct {
	users  *repository.UserRepository
	tasks  *TaskService
	auth   *AuthService
	digest *DigestService
	issuer *SessionIssuer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "service-test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	issuer := NewSessionIssuer("test-secret", time.Hour)
	return &fixture{
		users:  users,
		tasks:  NewTaskService(taskRepo),
		auth:   NewAuthService(users, issuer).WithHashCost(bcrypt.MinCost),
		digest: NewDigestService(taskRepo),
		issuer: issuer,
	}
}

func (f *fixture) register(t *testing.T, email string) *model.User {
	t.Helper()
	user, _, err := f.auth.Register(context.Background(), RegisterInput{Email: email, Password: "secret1", FullName: "Ada Lovelace"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user
}

func strPtr(s string) *string { return &s }

func TestRegisterValidation(t *testing.T) {
	f := setup(t)

	_, _, err := f.auth.Register(context.Background(), RegisterInput{Email: "nope", Password: "123", FullName: "  "})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Fields) != 3 {
		t.Fatalf("expected 3 field errors, got %#v", verr.Fields)
	}
}

func TestRegisterLoginAndDuplicate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user, token, err := f.auth.Register(ctx, RegisterInput{Email: " Ada@Example.com ", Password: "secret1", FullName: "Ada"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("email not normalised: %q", user.Email)
	}
	if user.PasswordHash == "secret1" {
		t.Fatal("password stored in clear text")
	}
	if id, err := f.auth.Authenticate(token); err != nil || id != user.ID {
		t.Fatalf("authenticate register token: id=%q err=%v", id, err)
	}

	if _, _, err := f.auth.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "secret1", FullName: "Ada"}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	if _, _, err := f.auth.Login(ctx, "ada@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for bad password, got %v", err)
	}
	if _, _, err := f.auth.Login(ctx, "ghost@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}

	logged, token, err := f.auth.Login(ctx, "ADA@example.com", "secret1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != user.ID || token == "" {
		t.Fatalf("unexpected login result: %#v %q", logged, token)
	}
}

func TestSessionIssuerExpiry(t *testing.T) {
	issuer := NewSessionIssuer("secret", time.Hour)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	token, err := issuer.Issue("u1", "u1@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := issuer.Verify(token)
	if err != nil || claims.UserID != "u1" {
		t.Fatalf("verify: %#v %v", claims, err)
	}

	issuer.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, err := issuer.Verify(token); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	other := NewSessionIssuer("other-secret", time.Hour)
	other.now = func() time.Time { return base }
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for foreign signature, got %v", err)
	}
	if _, err := issuer.Verify("garbage"); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for garbage, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	chat := int64(4242)
	updated, err := f.auth.UpdateProfile(ctx, user.ID, ProfileInput{FullName: strPtr("Countess"), TelegramChatID: &chat})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.FullName != "Countess" || updated.TelegramChatID == nil || *updated.TelegramChatID != chat {
		t.Fatalf("unexpected profile: %#v", updated)
	}

	zero := int64(0)
	updated, err = f.auth.UpdateProfile(ctx, user.ID, ProfileInput{TelegramChatID: &zero})
	if err != nil {
		t.Fatalf("unlink: %v", err)
	}
	if updated.TelegramChatID != nil {
		t.Fatalf("expected chat id cleared, got %v", *updated.TelegramChatID)
	}

	if _, err := f.auth.CurrentUser(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateTaskDefaultsAndValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	task, err := f.tasks.CreateTask(ctx, user.ID, TaskInput{Title: "  Write report ", Description: strPtr("   ")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Title != "Write report" || task.Status != model.StatusTodo || task.Priority != model.PriorityMedium {
		t.Fatalf("unexpected defaults: %#v", task)
	}
	if task.Description != nil {
		t.Fatalf("blank description should be stored as null, got %q", *task.Description)
	}
	if task.ID == "" || task.UserID != user.ID {
		t.Fatalf("server fields not assigned: %#v", task)
	}

	_, err = f.tasks.CreateTask(ctx, user.ID, TaskInput{Title: " ", Status: "LATER", Priority: "URGENT"})
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 3 {
		t.Fatalf("expected 3 validation errors, got %v", err)
	}
}

func TestUpdateAndDeleteOwnerCheck(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owner := f.register(t, "owner@example.com")
	intruder := f.register(t, "intruder@example.com")

	task, err := f.tasks.CreateTask(ctx, owner.ID, TaskInput{Title: "Mine", Description: strPtr("keep")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done := model.StatusDone
	if _, err := f.tasks.UpdateTask(ctx, intruder.ID, task.ID, TaskPatch{Status: &done}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.tasks.UpdateTask(ctx, owner.ID, "missing", TaskPatch{Status: &done}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	blank := " "
	var verr *ValidationError
	if _, err := f.tasks.UpdateTask(ctx, owner.ID, task.ID, TaskPatch{Title: &blank}); !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	updated, err := f.tasks.UpdateTask(ctx, owner.ID, task.ID, TaskPatch{Status: &done})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != model.StatusDone || updated.Title != "Mine" {
		t.Fatalf("partial update lost fields: %#v", updated)
	}
	if updated.Description == nil || *updated.Description != "keep" {
		t.Fatal("description should be untouched by a partial update")
	}

	if err := f.tasks.DeleteTask(ctx, intruder.ID, task.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden on delete, got %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, owner.ID, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, owner.ID, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestDigestSummary(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.register(t, "ada@example.com")

	for _, in := range []TaskInput{
		{Title: "Low one", Priority: model.PriorityLow},
		{Title: "Urgent <b>", Priority: model.PriorityHigh},
		{Title: "Shipped", Status: model.StatusDone},
	} {
		if _, err := f.tasks.CreateTask(ctx, user.ID, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	text, err := f.digest.Summary(ctx, *user, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	for _, want := range []string{"Ada Lovelace", "2026-03-01", "Total: <b>3</b>", "Done: 1", "Urgent &lt;b&gt;"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Shipped") {
		t.Error("done tasks should not be listed as open")
	}
	if strings.Index(text, "Urgent") > strings.Index(text, "Low one") {
		t.Error("high priority task should be listed before low priority")
	}
}

func TestFormatTask(t *testing.T) {
	desc := " notes "
	cases := []struct {
		name string
		task model.Task
		want string
	}{
		{"todo", model.Task{Title: "Plain", Status: model.StatusTodo, Priority: model.PriorityLow}, "🟢 Plain <i>(low)</i>\n"},
		{"high", model.Task{Title: "Hot", Status: model.StatusTodo, Priority: model.PriorityHigh}, "⚠️ Hot <i>(high)</i>\n"},
		{"in progress wins", model.Task{Title: "Busy", Status: model.StatusInProgress, Priority: model.PriorityHigh}, "⏳ Busy <i>(high)</i>\n"},
		{"description", model.Task{Title: "A", Status: model.StatusTodo, Priority: model.PriorityMedium, Description: &desc}, "🟢 A <i>(medium)</i>\n   📝 notes\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FormatTask(tc.task); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestShortTitle(t *testing.T) {
	if got := shortTitle("  short ", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := shortTitle("абвгдежзий", 5); got != "абвг…" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("09:30")
	if err != nil || spec != "0 30 9 * * *" {
		t.Fatalf("spec=%q err=%v", spec, err)
	}
	for _, bad := range []string{"9", "24:00", "10:61", "ab:cd"} {
		if _, err := buildDailySpec(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC, time.Second)
	noop := func(context.Context) error { return nil }
	if _, err := s.ScheduleInterval("noop", 0, noop); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := s.ScheduleInterval("noop", time.Hour, noop); err != nil {
		t.Fatalf("schedule interval: %v", err)
	}
	if _, err := s.ScheduleDaily("noop", "08:00", noop); err != nil {
		t.Fatalf("schedule daily: %v", err)
	}
	if s.Entries() != 2 {
		t.Fatalf("expected 2 entries, got %d", s.Entries())
	}
}
