package bot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	return f.sent[len(f.sent)-1]
}

type fixture struct {
	bot    *Bot
	sender *fakeSender
	users  *repository.UserRepository
	tasks  *service.TaskService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot-test.db"))
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
	tasks := service.NewTaskService(taskRepo)
	sender := &fakeSender{}
	return &fixture{
		bot:    newBot(sender, users, tasks, service.NewDigestService(taskRepo)),
		sender: sender,
		users:  users,
		tasks:  tasks,
	}
}

func (f *fixture) linkedUser(t *testing.T, chatID int64) *model.User {
	t.Helper()
	user := &model.User{Email: "ada@example.com", PasswordHash: "x", FullName: "Ada", TelegramChatID: &chatID}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func command(chatID int64, text string) *tgbotapi.Message {
	cmdLen := len(strings.Fields(text)[0])
	return &tgbotapi.Message{
		Text:     text,
		Chat:     &tgbotapi.Chat{ID: chatID, Type: "private"},
		From:     &tgbotapi.User{ID: chatID, FirstName: "Ada"},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestStartShowsChatID(t *testing.T) {
	f := setup(t)
	if err := f.bot.handleMessage(context.Background(), command(555, "/start")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	msg := f.sender.last(t)
	if msg.ChatID != 555 || !strings.Contains(msg.Text, "555") {
		t.Fatalf("unexpected reply %#v", msg)
	}
}

func TestUnlinkedChatIsTold(t *testing.T) {
	f := setup(t)
	if err := f.bot.handleMessage(context.Background(), command(1, "/stats")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(f.sender.last(t).Text, "not linked") {
		t.Fatalf("unexpected reply %q", f.sender.last(t).Text)
	}
}

func TestStatsAndTasksForLinkedUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.linkedUser(t, 42)

	for _, in := range []service.TaskInput{
		{Title: "Open <one>"},
		{Title: "Closed", Status: model.StatusDone},
	} {
		if _, err := f.tasks.CreateTask(ctx, user.ID, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := f.bot.handleMessage(ctx, command(42, "/stats")); err != nil {
		t.Fatalf("stats: %v", err)
	}
	stats := f.sender.last(t).Text
	if !strings.Contains(stats, "Total: <b>2</b>") || !strings.Contains(stats, "Done: 1") {
		t.Fatalf("unexpected stats reply %q", stats)
	}

	if err := f.bot.handleMessage(ctx, command(42, "/tasks")); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	list := f.sender.last(t).Text
	if !strings.Contains(list, "Open &lt;one&gt;") || strings.Contains(list, "Closed") {
		t.Fatalf("unexpected task list %q", list)
	}
}

func TestSendDigestsOnlyToLinkedUsers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.linkedUser(t, 7)
	if err := f.users.Create(ctx, &model.User{Email: "plain@example.com", PasswordHash: "x"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if err := f.bot.SendDigests(ctx); err != nil {
		t.Fatalf("send digests: %v", err)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0].ChatID != 7 {
		t.Fatalf("unexpected digests %#v", f.sender.sent)
	}
	if f.sender.sent[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatal("digest should be sent as HTML")
	}
}

func TestTasksAndDigestRenderTasksAlike(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	user := f.linkedUser(t, 42)

	if _, err := f.tasks.CreateTask(ctx, user.ID, service.TaskInput{Title: "Ship release", Priority: model.PriorityHigh}); err != nil {
		t.Fatalf("create: %v", err)
	}
	open, err := f.tasks.ListOpen(ctx, user.ID)
	if err != nil || len(open) != 1 {
		t.Fatalf("list open: %v %v", open, err)
	}
	line := strings.TrimSpace(service.FormatTask(open[0]))

	if err := f.bot.handleMessage(ctx, command(42, "/tasks")); err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if list := f.sender.last(t).Text; !strings.Contains(list, line) {
		t.Fatalf("/tasks reply %q does not contain %q", list, line)
	}

	if err := f.bot.handleMessage(ctx, command(42, "/digest")); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest := f.sender.last(t).Text; !strings.Contains(digest, line) {
		t.Fatalf("digest %q does not contain %q", digest, line)
	}
}
