package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// TaskInput represents data accepted when creating a task.
type TaskInput struct {
	Title       string
	Description *string
	Status      model.Status
	Priority    model.Priority
}

// TaskPatch holds the fields of an update; nil means "leave unchanged".
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *model.Status
	Priority    *model.Priority
}

// TaskService wraps task-related business logic.
type TaskService struct {
	taskRepo *repository.TaskRepository
}

func NewTaskService(taskRepo *repository.TaskRepository) *TaskService {
	return &TaskService{taskRepo: taskRepo}
}

func (s *TaskService) List(ctx context.Context, userID string) ([]model.Task, error) {
	return s.taskRepo.ListByUser(ctx, userID)
}

func (s *TaskService) ListOpen(ctx context.Context, userID string) ([]model.Task, error) {
	return s.taskRepo.ListOpen(ctx, userID)
}

func (s *TaskService) Stats(ctx context.Context, userID string) (model.Stats, error) {
	return s.taskRepo.Stats(ctx, userID)
}

// CreateTask validates input, applies TODO/MEDIUM defaults and stores the task.
func (s *TaskService) CreateTask(ctx context.Context, userID string, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)

	verr := &ValidationError{}
	if title == "" {
		verr.add("title", "Title is required")
	}
	if input.Status != "" && !input.Status.Valid() {
		verr.add("status", "Invalid status")
	}
	if input.Priority != "" && !input.Priority.Valid() {
		verr.add("priority", "Invalid priority")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	task := model.Task{
		UserID:      userID,
		Title:       title,
		Description: normalizeDescription(input.Description),
		Status:      input.Status,
		Priority:    input.Priority,
	}
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}

	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask merges patch into the task after the owner check.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, patch TaskPatch) (*model.Task, error) {
	verr := &ValidationError{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		verr.add("title", "Title is required")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		verr.add("status", "Invalid status")
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		verr.add("priority", "Invalid priority")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	task, err := s.ownedTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		task.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		task.Description = normalizeDescription(patch.Description)
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Priority != nil {
		task.Priority = *patch.Priority
	}

	if err := s.taskRepo.Save(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task after the owner check.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := s.ownedTask(ctx, userID, taskID); err != nil {
		return err
	}
	return s.taskRepo.Delete(ctx, userID, taskID)
}

func (s *TaskService) ownedTask(ctx context.Context, userID, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("find task: %w", err)
	}
	if task.UserID != userID {
		return nil, ErrForbidden
	}
	return task, nil
}

func normalizeDescription(desc *string) *string {
	if desc == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*desc)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
