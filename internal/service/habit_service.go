package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

// HabitService manages habits and their per-day completion logs.
type HabitService struct {
	habits repository.HabitRepository
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

func NewHabitService(habits repository.HabitRepository, node *snowflake.Node, logger *zap.Logger) *HabitService {
	return &HabitService{
		habits: habits,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("service.habit"),
	}
}

// Create adds a habit owned by the actor.
func (s *HabitService) Create(ctx context.Context, actor domain.User, name string) (HabitView, error) {
	ctx, span := s.tracer.Start(ctx, "habit.create")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return HabitView{}, fmt.Errorf("%w: name is required", autherr.ErrValidation)
	}
	habit := domain.Habit{
		ID:     s.node.Generate().Int64(),
		Name:   name,
		UserID: actor.ID,
	}
	created, err := s.habits.Create(ctx, habit)
	if err != nil {
		return HabitView{}, err
	}
	return toHabitView(created), nil
}

// List returns the actor's habits.
func (s *HabitService) List(ctx context.Context, actor domain.User) ([]HabitView, error) {
	habits, err := s.habits.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	views := make([]HabitView, 0, len(habits))
	for _, h := range habits {
		views = append(views, toHabitView(h))
	}
	return views, nil
}

// Delete removes a habit the actor owns along with its logs.
func (s *HabitService) Delete(ctx context.Context, actor domain.User, id int64) error {
	ctx, span := s.tracer.Start(ctx, "habit.delete")
	defer span.End()

	if _, err := s.ownedHabit(ctx, actor, id); err != nil {
		return err
	}
	if err := s.habits.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrNotFound
		}
		return err
	}
	s.logger.Info("habit.deleted", zap.Int64("habit_id", id), zap.Int64("user_id", actor.ID))
	return nil
}

// Toggle flips the completion state of a habit for one day, creating the
// day's log on first toggle. Sleep hours, when given, are recorded on the
// same log.
func (s *HabitService) Toggle(ctx context.Context, actor domain.User, habitID int64, day time.Time, sleepHours *int) (HabitLogView, error) {
	ctx, span := s.tracer.Start(ctx, "habit.toggle")
	defer span.End()

	if _, err := s.ownedHabit(ctx, actor, habitID); err != nil {
		return HabitLogView{}, err
	}
	day = day.Truncate(24 * time.Hour)

	log, err := s.habits.GetLog(ctx, habitID, day)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return HabitLogView{}, err
		}
		log = domain.HabitLog{
			ID:         s.node.Generate().Int64(),
			HabitID:    habitID,
			UserID:     actor.ID,
			Date:       day,
			Completed:  true,
			SleepHours: sleepHours,
		}
		inserted, err := s.habits.InsertLog(ctx, log)
		if err != nil {
			if repository.IsUniqueViolation(err) {
				// Concurrent toggle for the same day won the insert.
				return HabitLogView{}, autherr.ErrConflict
			}
			return HabitLogView{}, err
		}
		return toHabitLogView(inserted), nil
	}

	log.Completed = !log.Completed
	if sleepHours != nil {
		// Recording sleep hours counts the day as done regardless of the flip.
		log.SleepHours = sleepHours
		log.Completed = true
	}
	updated, err := s.habits.UpdateLog(ctx, log)
	if err != nil {
		return HabitLogView{}, err
	}
	return toHabitLogView(updated), nil
}

// MonthLogs returns all of the actor's habit logs for one calendar month.
func (s *HabitService) MonthLogs(ctx context.Context, actor domain.User, year int, month time.Month) ([]HabitLogView, error) {
	ctx, span := s.tracer.Start(ctx, "habit.month_logs")
	defer span.End()

	if year < 1970 || year > 9999 {
		return nil, fmt.Errorf("%w: year out of range", autherr.ErrValidation)
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	logs, err := s.habits.LogsForRange(ctx, actor.ID, from, to)
	if err != nil {
		return nil, err
	}
	views := make([]HabitLogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, toHabitLogView(l))
	}
	return views, nil
}

func (s *HabitService) ownedHabit(ctx context.Context, actor domain.User, id int64) (domain.Habit, error) {
	habit, err := s.habits.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Habit{}, autherr.ErrNotFound
		}
		return domain.Habit{}, err
	}
	if habit.UserID != actor.ID {
		return domain.Habit{}, autherr.ErrForbidden
	}
	return habit, nil
}
