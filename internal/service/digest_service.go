package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

const digestOpenLimit = 10

// DigestService builds human-readable summaries of a user's dashboard.
type DigestService struct {
	taskRepo *repository.TaskRepository
}

func NewDigestService(taskRepo *repository.TaskRepository) *DigestService {
	return &DigestService{taskRepo: taskRepo}
}

// Summary renders stats plus open tasks as Telegram-flavoured HTML.
func (s *DigestService) Summary(ctx context.Context, user model.User, now time.Time) (string, error) {
	stats, err := s.taskRepo.Stats(ctx, user.ID)
	if err != nil {
		return "", err
	}
	open, err := s.taskRepo.ListOpen(ctx, user.ID)
	if err != nil {
		return "", err
	}

	// In-progress work first, then by priority, newest first within a rank.
	sort.SliceStable(open, func(i, j int) bool {
		if ri, rj := statusRank(open[i].Status), statusRank(open[j].Status); ri != rj {
			return ri < rj
		}
		if pi, pj := priorityRank(open[i].Priority), priorityRank(open[j].Priority); pi != pj {
			return pi < pj
		}
		return open[i].CreatedAt.After(open[j].CreatedAt)
	})

	var builder strings.Builder
	name := strings.TrimSpace(user.FullName)
	if name == "" {
		name = user.Email
	}
	builder.WriteString(fmt.Sprintf("📋 <b>TaskFlow digest for %s</b>\n", html.EscapeString(name)))
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))
	builder.WriteString(FormatStats(stats))

	builder.WriteString("\n🔥 <b>Open tasks</b>\n")
	if len(open) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for i, task := range open {
			if i == digestOpenLimit {
				builder.WriteString(fmt.Sprintf("… and %d more\n", len(open)-digestOpenLimit))
				break
			}
			builder.WriteString(FormatTask(task))
		}
	}

	return strings.TrimSpace(builder.String()), nil
}

// FormatStats renders the four dashboard counters, one per line.
func FormatStats(stats model.Stats) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total: <b>%d</b>\n", stats.Total))
	sb.WriteString(fmt.Sprintf("To do: %d\n", stats.Todo))
	sb.WriteString(fmt.Sprintf("In progress: %d\n", stats.InProgress))
	sb.WriteString(fmt.Sprintf("Done: %d\n", stats.Done))
	return sb.String()
}

const maxTitleLen = 60

// FormatTask renders one open task as a Telegram HTML line, with its
// description on a second line when present.
func FormatTask(task model.Task) string {
	var sb strings.Builder

	icon := "🟢"
	switch {
	case task.Status == model.StatusInProgress:
		icon = "⏳"
	case task.Priority == model.PriorityHigh:
		icon = "⚠️"
	}

	title := html.EscapeString(shortTitle(task.Title, maxTitleLen))
	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, title, strings.ToLower(string(task.Priority))))

	if task.Description != nil && *task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(strings.TrimSpace(*task.Description))))
	}

	sb.WriteByte('\n')
	return sb.String()
}

func shortTitle(title string, maxLen int) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= maxLen {
		return string(runes)
	}
	return string(runes[:maxLen-1]) + "…"
}

func statusRank(s model.Status) int {
	if s == model.StatusInProgress {
		return 0
	}
	return 1
}

func priorityRank(p model.Priority) int {
	switch p {
	case model.PriorityHigh:
		return 0
	case model.PriorityMedium:
		return 1
	default:
		return 2
	}
}
