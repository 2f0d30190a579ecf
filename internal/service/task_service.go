package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

// TaskService manages per-user todo items.
type TaskService struct {
	tasks  repository.TaskRepository
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

func NewTaskService(tasks repository.TaskRepository, node *snowflake.Node, logger *zap.Logger) *TaskService {
	return &TaskService{
		tasks:  tasks,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("service.task"),
	}
}

// Create adds a task owned by the actor.
func (s *TaskService) Create(ctx context.Context, actor domain.User, title, description string) (TaskView, error) {
	ctx, span := s.tracer.Start(ctx, "task.create")
	defer span.End()

	title = strings.TrimSpace(title)
	if title == "" {
		return TaskView{}, fmt.Errorf("%w: title is required", autherr.ErrValidation)
	}
	task := domain.Task{
		ID:          s.node.Generate().Int64(),
		Title:       title,
		Description: strings.TrimSpace(description),
		UserID:      actor.ID,
	}
	created, err := s.tasks.Create(ctx, task)
	if err != nil {
		return TaskView{}, err
	}
	return toTaskView(created), nil
}

// List returns a page of the actor's tasks, optionally filtered by
// completion state and a title search.
func (s *TaskService) List(ctx context.Context, actor domain.User, completed *bool, search string, page, limit int) (TaskPage, error) {
	ctx, span := s.tracer.Start(ctx, "task.list")
	defer span.End()

	page, limit = normalizePage(page, limit)
	tasks, total, err := s.tasks.ListByUser(ctx, actor.ID, repository.TaskFilter{
		Completed: completed,
		Search:    strings.TrimSpace(search),
		Limit:     limit,
		Offset:    (page - 1) * limit,
	})
	if err != nil {
		return TaskPage{}, err
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	return TaskPage{Total: total, Page: page, Limit: limit, Tasks: views}, nil
}

// ListAll returns a page of every task in the system. Admin only.
func (s *TaskService) ListAll(ctx context.Context, actor domain.User, page, limit int) (TaskPage, error) {
	if !actor.IsAdmin() {
		return TaskPage{}, autherr.ErrForbidden
	}
	page, limit = normalizePage(page, limit)
	tasks, total, err := s.tasks.ListAll(ctx, limit, (page-1)*limit)
	if err != nil {
		return TaskPage{}, err
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, toTaskView(t))
	}
	return TaskPage{Total: total, Page: page, Limit: limit, Tasks: views}, nil
}

// UpdateTaskInput carries the mutable task fields. Nil means unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Update edits a task the actor owns.
func (s *TaskService) Update(ctx context.Context, actor domain.User, id int64, in UpdateTaskInput) (TaskView, error) {
	ctx, span := s.tracer.Start(ctx, "task.update")
	defer span.End()

	task, err := s.ownedTask(ctx, actor, id)
	if err != nil {
		return TaskView{}, err
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return TaskView{}, fmt.Errorf("%w: title cannot be empty", autherr.ErrValidation)
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Completed != nil {
		task.Completed = *in.Completed
	}
	updated, err := s.tasks.Update(ctx, task)
	if err != nil {
		return TaskView{}, err
	}
	return toTaskView(updated), nil
}

// Delete removes a task the actor owns.
func (s *TaskService) Delete(ctx context.Context, actor domain.User, id int64) error {
	ctx, span := s.tracer.Start(ctx, "task.delete")
	defer span.End()

	if _, err := s.ownedTask(ctx, actor, id); err != nil {
		return err
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrNotFound
		}
		return err
	}
	s.logger.Info("task.deleted", zap.Int64("task_id", id), zap.Int64("user_id", actor.ID))
	return nil
}

// ownedTask loads a task, refusing actors who do not own it. Admins read
// everything through ListAll but do not get write access here.
func (s *TaskService) ownedTask(ctx context.Context, actor domain.User, id int64) (domain.Task, error) {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Task{}, autherr.ErrNotFound
		}
		return domain.Task{}, err
	}
	if task.UserID != actor.ID {
		return domain.Task{}, autherr.ErrForbidden
	}
	return task, nil
}
