package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"omnihub/api/internal/realtime"
	"omnihub/api/internal/search"
	"omnihub/api/internal/store"
	"omnihub/api/internal/util"
)

var (
	taskTypes      = map[string]bool{"Heading": true, "Sub-Heading": true, "Task": true}
	taskStatuses   = map[string]bool{"To Do": true, "In Progress": true, "Done": true}
	taskPriorities = map[string]bool{"Low": true, "Medium": true, "High": true, "Critical": true}
)

type TaskView struct {
	ID           string `json:"id"`
	ProjectID    string `json:"projectId"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	Deadline     string `json:"deadline,omitempty"`
	AssignedTo   string `json:"assignedTo,omitempty"`
	ParentTaskID string `json:"parentTaskId,omitempty"`
	Type         string `json:"type"`
	IsTicket     bool   `json:"isTicket"`
	TicketID     string `json:"ticketId,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

func taskView(t store.Task) TaskView {
	view := TaskView{
		ID:           t.ID,
		ProjectID:    t.ProjectID,
		Title:        t.Title,
		Description:  t.Description,
		Priority:     t.Priority,
		Status:       t.Status,
		AssignedTo:   t.AssignedTo,
		ParentTaskID: t.ParentTaskID,
		Type:         t.Type,
		IsTicket:     t.IsTicket,
		TicketID:     t.TicketID,
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
	}
	if t.Deadline != nil {
		view.Deadline = t.Deadline.UTC().Format(time.RFC3339)
	}
	return view
}

type TaskInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	Deadline     string `json:"deadline"`
	AssignedTo   string `json:"assignedTo"`
	ParentTaskID string `json:"parentTaskId"`
	Type         string `json:"type"`
}

func validateTaskInput(input *TaskInput) error {
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		return validationError("task title is required", nil)
	}
	if input.Type == "" {
		input.Type = "Task"
	}
	if !taskTypes[input.Type] {
		return validationError("unknown task type", map[string]string{"type": input.Type})
	}
	if input.Status == "" {
		input.Status = "To Do"
	}
	if !taskStatuses[input.Status] {
		return validationError("unknown task status", map[string]string{"status": input.Status})
	}
	if input.Priority == "" {
		input.Priority = "Medium"
	}
	if !taskPriorities[input.Priority] {
		return validationError("unknown task priority", map[string]string{"priority": input.Priority})
	}
	return nil
}

func parseDeadline(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, validationError("deadline must be RFC 3339", nil)
	}
	return &t, nil
}

func (s *Service) CreateTask(ctx context.Context, projectID, userID string, input TaskInput) (TaskView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return TaskView{}, err
	}
	if err := validateTaskInput(&input); err != nil {
		return TaskView{}, err
	}
	deadline, err := parseDeadline(input.Deadline)
	if err != nil {
		return TaskView{}, err
	}

	if input.ParentTaskID != "" {
		parent, err := s.store.GetTask(ctx, input.ParentTaskID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return TaskView{}, domainError(http.StatusNotFound, "NOT_FOUND", "parent task not found", nil)
			}
			return TaskView{}, err
		}
		if parent.ProjectID != projectID {
			return TaskView{}, domainError(http.StatusNotFound, "NOT_FOUND", "parent task not found", nil)
		}
	}

	task := store.Task{
		ID:           util.NewID("tsk"),
		ProjectID:    projectID,
		Title:        input.Title,
		Description:  input.Description,
		Priority:     input.Priority,
		Status:       input.Status,
		Deadline:     deadline,
		AssignedTo:   input.AssignedTo,
		ParentTaskID: input.ParentTaskID,
		Type:         input.Type,
	}
	if err := s.store.CreateTask(ctx, task); err != nil {
		return TaskView{}, err
	}

	created, err := s.store.GetTask(ctx, task.ID)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(created)
	s.emit(realtime.ProjectRoom(projectID), "task_created", taskView(created))
	return taskView(created), nil
}

func (s *Service) ListTasks(ctx context.Context, projectID, userID string) ([]TaskView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, projectID)
	if err != nil {
		return nil, err
	}
	views := make([]TaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, taskView(task))
	}
	return views, nil
}

func (s *Service) UpdateTask(ctx context.Context, taskID, userID string, input TaskInput) (TaskView, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if _, err := s.checker.RequireMember(ctx, task.ProjectID, userID); err != nil {
		return TaskView{}, err
	}
	if err := validateTaskInput(&input); err != nil {
		return TaskView{}, err
	}
	deadline, err := parseDeadline(input.Deadline)
	if err != nil {
		return TaskView{}, err
	}

	task.Title = input.Title
	task.Description = input.Description
	task.Priority = input.Priority
	task.Status = input.Status
	task.Deadline = deadline
	task.AssignedTo = input.AssignedTo
	if err := s.store.UpdateTask(ctx, task); err != nil {
		return TaskView{}, err
	}

	updated, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(updated)
	s.emit(realtime.ProjectRoom(task.ProjectID), "task_updated", taskView(updated))
	return taskView(updated), nil
}

func (s *Service) UpdateTaskStatus(ctx context.Context, taskID, userID, status string) (TaskView, error) {
	if !taskStatuses[status] {
		return TaskView{}, validationError("unknown task status", map[string]string{"status": status})
	}
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	if _, err := s.checker.RequireMember(ctx, task.ProjectID, userID); err != nil {
		return TaskView{}, err
	}
	if err := s.store.UpdateTaskStatus(ctx, taskID, status); err != nil {
		return TaskView{}, err
	}

	updated, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return TaskView{}, err
	}
	s.indexTask(updated)
	s.emit(realtime.ProjectRoom(task.ProjectID), "task_updated", taskView(updated))
	return taskView(updated), nil
}

// DeleteTask removes a task and its direct subtasks. Tickets promoted from
// the task or its subtasks are deleted with it.
func (s *Service) DeleteTask(ctx context.Context, taskID, userID string) error {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	if _, err := s.checker.RequireMember(ctx, task.ProjectID, userID); err != nil {
		return err
	}
	subtasks, err := s.store.CountChildren(ctx, taskID)
	if err != nil {
		return err
	}
	ticketIDs, err := s.store.DeleteTask(ctx, taskID)
	if err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteTask(taskID)
	}
	room := realtime.ProjectRoom(task.ProjectID)
	for _, id := range ticketIDs {
		s.emit(room, "ticket_deleted", map[string]any{"ticketId": id, "projectId": task.ProjectID})
	}
	s.emit(room, "task_deleted", map[string]any{
		"taskId":          taskID,
		"projectId":       task.ProjectID,
		"subtasksRemoved": subtasks,
	})
	return nil
}

func (s *Service) indexTask(task store.Task) {
	if s.search == nil {
		return
	}
	s.search.IndexTask(search.TaskRecord{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		ProjectID:   task.ProjectID,
	})
}
