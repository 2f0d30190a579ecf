package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
)

// ListUsersParams filters and pages the user listing.
type ListUsersParams struct {
	Search string
	Limit  int
	Offset int
}

// UserRepository exposes persistence for accounts. Lookups by a populated
// identifier return pgx.ErrNoRows (wrapped) when no row matches.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByPhone(ctx context.Context, phone string) (domain.User, error)
	GetByExternalID(ctx context.Context, subjectID string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	Update(ctx context.Context, user domain.User) (domain.User, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, params ListUsersParams) ([]domain.User, error)
	ListAll(ctx context.Context) ([]domain.User, error)
}

// TokenRepository handles refresh-token persistence.
type TokenRepository interface {
	Insert(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
	GetByToken(ctx context.Context, token string) (domain.RefreshToken, error)
	Revoke(ctx context.Context, token string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	// ReplaceActive revokes every active token for the owning user and
	// inserts the new one in a single transaction.
	ReplaceActive(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error)
}

// OTPRepository stores hashed one-time codes.
type OTPRepository interface {
	Insert(ctx context.Context, code domain.OTPCode) (domain.OTPCode, error)
	// LatestUnverified returns the newest unverified, unexpired code for
	// the identifier.
	LatestUnverified(ctx context.Context, identifier string, now time.Time) (domain.OTPCode, error)
	MarkVerified(ctx context.Context, id int64) error
}

// TaskFilter filters and pages a user's task listing.
type TaskFilter struct {
	Completed *bool
	Search    string
	Limit     int
	Offset    int
}

// TaskRepository exposes task persistence. List methods return the total
// row count alongside the page.
type TaskRepository interface {
	Create(ctx context.Context, task domain.Task) (domain.Task, error)
	GetByID(ctx context.Context, id int64) (domain.Task, error)
	ListByUser(ctx context.Context, userID int64, filter TaskFilter) ([]domain.Task, int64, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Task, int64, error)
	Update(ctx context.Context, task domain.Task) (domain.Task, error)
	Delete(ctx context.Context, id int64) error
}

// HabitRepository exposes habit and habit-log persistence.
type HabitRepository interface {
	Create(ctx context.Context, habit domain.Habit) (domain.Habit, error)
	GetByID(ctx context.Context, id int64) (domain.Habit, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Habit, error)
	Delete(ctx context.Context, id int64) error
	GetLog(ctx context.Context, habitID int64, day time.Time) (domain.HabitLog, error)
	InsertLog(ctx context.Context, log domain.HabitLog) (domain.HabitLog, error)
	UpdateLog(ctx context.Context, log domain.HabitLog) (domain.HabitLog, error)
	LogsForRange(ctx context.Context, userID int64, from, to time.Time) ([]domain.HabitLog, error)
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation. Callers treat it as "someone else just created this row" and
// retry as a lookup.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
