package api

import (
	"net/http"

	"taskflow/internal/model"
	"taskflow/internal/service"
)

type taskRequest struct {
	Title       *string         `json:"title"`
	Description *string         `json:"description"`
	Status      *model.Status   `json:"status"`
	Priority    *model.Priority `json:"priority"`
}

type taskResponse struct {
	Message string      `json:"message,omitempty"`
	Task    *model.Task `json:"task"`
}

type taskListResponse struct {
	Tasks []model.Task `json:"tasks"`
}

type statsResponse struct {
	Stats model.Stats `json:"stats"`
}

const (
	msgTaskNotFound    = "Task not found"
	msgUpdateForbidden = "Unauthorized to update this task"
	msgDeleteForbidden = "Unauthorized to delete this task"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, msgTaskNotFound, msgUpdateForbidden)
		return
	}
	writeJSON(w, http.StatusOK, taskListResponse{Tasks: tasks})
}

func (s *Server) handleTaskStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tasks.Stats(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		writeServiceError(w, r, err, msgTaskNotFound, msgUpdateForbidden)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Stats: stats})
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := service.TaskInput{Description: req.Description}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Status != nil {
		input.Status = *req.Status
	}
	if req.Priority != nil {
		input.Priority = *req.Priority
	}

	task, err := s.tasks.CreateTask(r.Context(), userIDFrom(r.Context()), input)
	if err != nil {
		writeServiceError(w, r, err, msgTaskNotFound, msgUpdateForbidden)
		return
	}
	writeJSON(w, http.StatusCreated, taskResponse{Message: "Task created successfully", Task: task})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	task, err := s.tasks.UpdateTask(r.Context(), userIDFrom(r.Context()), r.PathValue("id"), service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
	})
	if err != nil {
		writeServiceError(w, r, err, msgTaskNotFound, msgUpdateForbidden)
		return
	}
	writeJSON(w, http.StatusOK, taskResponse{Message: "Task updated successfully", Task: task})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.tasks.DeleteTask(r.Context(), userIDFrom(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, r, err, msgTaskNotFound, msgDeleteForbidden)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
