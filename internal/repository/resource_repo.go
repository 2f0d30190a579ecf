package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
)

var (
	_ TaskRepository  = (*PostgresTaskRepo)(nil)
	_ HabitRepository = (*PostgresHabitRepo)(nil)
)

// PostgresTaskRepo implements TaskRepository.
type PostgresTaskRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTaskRepo(pool *pgxpool.Pool) *PostgresTaskRepo {
	return &PostgresTaskRepo{db: pool}
}

const taskColumns = `id, title, description, completed, user_id, created_at, updated_at`

func (r *PostgresTaskRepo) Create(ctx context.Context, task domain.Task) (domain.Task, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO tasks (id, title, description, user_id) VALUES ($1, $2, $3, $4) RETURNING `+taskColumns,
		task.ID, task.Title, task.Description, task.UserID,
	)
	created, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (r *PostgresTaskRepo) GetByID(ctx context.Context, id int64) (domain.Task, error) {
	row := r.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

func (r *PostgresTaskRepo) ListByUser(ctx context.Context, userID int64, filter TaskFilter) ([]domain.Task, int64, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}
	if filter.Completed != nil {
		args = append(args, *filter.Completed)
		where = append(where, fmt.Sprintf("completed = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+s+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	clause := strings.Join(where, " AND ")

	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM tasks WHERE `+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		taskColumns, clause, len(args)-1, len(args))
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	return tasks, total, err
}

func (r *PostgresTaskRepo) ListAll(ctx context.Context, limit, offset int) ([]domain.Task, int64, error) {
	var total int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM tasks`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}
	rows, err := r.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list all tasks: %w", err)
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	return tasks, total, err
}

const updateTaskSQL = `UPDATE tasks
SET title = $2, description = $3, completed = $4, updated_at = now()
WHERE id = $1
RETURNING ` + taskColumns

func (r *PostgresTaskRepo) Update(ctx context.Context, task domain.Task) (domain.Task, error) {
	row := r.db.QueryRow(ctx, updateTaskSQL, task.ID, task.Title, task.Description, task.Completed)
	updated, err := scanTask(row)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

func (r *PostgresTaskRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete task: %w", pgx.ErrNoRows)
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]domain.Task, error) {
	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (domain.Task, error) {
	var t domain.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Completed, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// PostgresHabitRepo implements HabitRepository.
type PostgresHabitRepo struct {
	db *pgxpool.Pool
}

func NewPostgresHabitRepo(pool *pgxpool.Pool) *PostgresHabitRepo {
	return &PostgresHabitRepo{db: pool}
}

func (r *PostgresHabitRepo) Create(ctx context.Context, habit domain.Habit) (domain.Habit, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO habits (id, name, user_id) VALUES ($1, $2, $3) RETURNING id, name, user_id`,
		habit.ID, habit.Name, habit.UserID,
	)
	var created domain.Habit
	if err := row.Scan(&created.ID, &created.Name, &created.UserID); err != nil {
		return domain.Habit{}, fmt.Errorf("create habit: %w", err)
	}
	return created, nil
}

func (r *PostgresHabitRepo) GetByID(ctx context.Context, id int64) (domain.Habit, error) {
	var habit domain.Habit
	err := r.db.QueryRow(ctx, `SELECT id, name, user_id FROM habits WHERE id = $1`, id).
		Scan(&habit.ID, &habit.Name, &habit.UserID)
	if err != nil {
		return domain.Habit{}, fmt.Errorf("get habit: %w", err)
	}
	return habit, nil
}

func (r *PostgresHabitRepo) ListByUser(ctx context.Context, userID int64) ([]domain.Habit, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, user_id FROM habits WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []domain.Habit
	for rows.Next() {
		var habit domain.Habit
		if err := rows.Scan(&habit.ID, &habit.Name, &habit.UserID); err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, habit)
	}
	return habits, rows.Err()
}

func (r *PostgresHabitRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM habits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete habit: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete habit: %w", pgx.ErrNoRows)
	}
	return nil
}

const habitLogColumns = `id, habit_id, user_id, date, completed, sleep_hours`

func (r *PostgresHabitRepo) GetLog(ctx context.Context, habitID int64, day time.Time) (domain.HabitLog, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+habitLogColumns+` FROM habit_logs WHERE habit_id = $1 AND date = $2`,
		habitID, day,
	)
	log, err := scanHabitLog(row)
	if err != nil {
		return domain.HabitLog{}, fmt.Errorf("get habit log: %w", err)
	}
	return log, nil
}

func (r *PostgresHabitRepo) InsertLog(ctx context.Context, log domain.HabitLog) (domain.HabitLog, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO habit_logs (id, habit_id, user_id, date, completed, sleep_hours)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING `+habitLogColumns,
		log.ID, log.HabitID, log.UserID, log.Date, log.Completed, log.SleepHours,
	)
	inserted, err := scanHabitLog(row)
	if err != nil {
		return domain.HabitLog{}, fmt.Errorf("insert habit log: %w", err)
	}
	return inserted, nil
}

func (r *PostgresHabitRepo) UpdateLog(ctx context.Context, log domain.HabitLog) (domain.HabitLog, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE habit_logs SET completed = $2, sleep_hours = $3 WHERE id = $1 RETURNING `+habitLogColumns,
		log.ID, log.Completed, log.SleepHours,
	)
	updated, err := scanHabitLog(row)
	if err != nil {
		return domain.HabitLog{}, fmt.Errorf("update habit log: %w", err)
	}
	return updated, nil
}

func (r *PostgresHabitRepo) LogsForRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.HabitLog, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+habitLogColumns+` FROM habit_logs
WHERE user_id = $1 AND date >= $2 AND date < $3
ORDER BY date`,
		userID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list habit logs: %w", err)
	}
	defer rows.Close()

	var logs []domain.HabitLog
	for rows.Next() {
		log, err := scanHabitLog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit log: %w", err)
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}

func scanHabitLog(row pgx.Row) (domain.HabitLog, error) {
	var (
		l     domain.HabitLog
		hours sql.NullInt32
	)
	if err := row.Scan(&l.ID, &l.HabitID, &l.UserID, &l.Date, &l.Completed, &hours); err != nil {
		return domain.HabitLog{}, err
	}
	if hours.Valid {
		v := int(hours.Int32)
		l.SleepHours = &v
	}
	return l, nil
}
