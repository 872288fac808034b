package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gorm.io/gorm"

	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/internal/service"
)

const maxListed = 20

// Sender is the part of the Telegram API the bot writes through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is a read-only Telegram companion for linked TaskFlow accounts.
type Bot struct {
	api       *tgbotapi.BotAPI
	sender    Sender
	userRepo  *repository.UserRepository
	taskSvc   *service.TaskService
	digestSvc *service.DigestService
}

func New(token string, userRepo *repository.UserRepository, taskSvc *service.TaskService, digestSvc *service.DigestService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, userRepo, taskSvc, digestSvc)
	b.api = api
	return b, nil
}

func newBot(sender Sender, userRepo *repository.UserRepository, taskSvc *service.TaskService, digestSvc *service.DigestService) *Bot {
	return &Bot{
		sender:    sender,
		userRepo:  userRepo,
		taskSvc:   taskSvc,
		digestSvc: digestSvc,
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			continue
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}

	return ctx.Err()
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if !msg.IsCommand() {
		return b.sendText(msg.Chat.ID, "I only understand commands. Try /help.")
	}

	log.Printf("[info] command from chat %d: /%s", msg.Chat.ID, msg.Command())
	switch msg.Command() {
	case "start":
		return b.handleStart(msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.withUser(ctx, msg, b.handleTasks)
	case "stats":
		return b.withUser(ctx, msg, b.handleStats)
	case "digest":
		return b.withUser(ctx, msg, b.handleDigest)
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	name := ""
	if msg.From != nil {
		name = strings.TrimSpace(msg.From.FirstName)
	}
	if name == "" {
		name = "there"
	}

	text := fmt.Sprintf(
		"👋 Hi, %s!\nI mirror your <b>TaskFlow</b> dashboard.\n\n"+
			"To link this chat, send <code>PUT /api/auth/me</code> with\n"+
			"<code>{\"telegramChatId\": %d}</code>\n\nThen try /tasks or /stats.",
		escape(name), msg.Chat.ID,
	)
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>Commands</b>\n" +
		"• /tasks — open tasks\n" +
		"• /stats — dashboard counters\n" +
		"• /digest — full summary now\n" +
		"• /start — how to link this chat"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleTasks(ctx context.Context, chatID int64, user *model.User) error {
	tasks, err := b.taskSvc.ListOpen(ctx, user.ID)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return b.sendText(chatID, "🎉 Nothing open.")
	}

	var sb strings.Builder
	sb.WriteString("📋 <b>Open tasks</b>\n")
	for i, task := range tasks {
		if i == maxListed {
			sb.WriteString(fmt.Sprintf("… and %d more", len(tasks)-maxListed))
			break
		}
		sb.WriteString(service.FormatTask(task))
	}
	return b.sendText(chatID, strings.TrimSpace(sb.String()))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64, user *model.User) error {
	stats, err := b.taskSvc.Stats(ctx, user.ID)
	if err != nil {
		return err
	}
	return b.sendText(chatID, "📊 <b>Dashboard</b>\n"+service.FormatStats(stats))
}

func (b *Bot) handleDigest(ctx context.Context, chatID int64, user *model.User) error {
	text, err := b.digestSvc.Summary(ctx, *user, time.Now())
	if err != nil {
		return b.sendText(chatID, "Could not build the digest right now.")
	}
	return b.sendText(chatID, text)
}

// withUser resolves the linked account of the chat before running handler.
func (b *Bot) withUser(ctx context.Context, msg *tgbotapi.Message, handler func(context.Context, int64, *model.User) error) error {
	user, err := b.userRepo.FindByTelegramChatID(ctx, msg.Chat.ID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return b.sendText(msg.Chat.ID, "This chat is not linked to a TaskFlow account yet. Send /start for instructions.")
	case err != nil:
		return fmt.Errorf("find linked user: %w", err)
	}
	return handler(ctx, msg.Chat.ID, user)
}

// SendDigests pushes the summary to every linked user.
func (b *Bot) SendDigests(ctx context.Context) error {
	users, err := b.userRepo.ListLinked(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.digestSvc.Summary(ctx, user, now)
		if err != nil {
			log.Printf("build digest for user %s: %v", user.ID, err)
			continue
		}
		if err := b.sendText(*user.TelegramChatID, text); err != nil {
			log.Printf("send digest to chat %d: %v", *user.TelegramChatID, err)
		}
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.sender.Send(msg)
	return err
}

func escape(s string) string {
	return html.EscapeString(s)
}
