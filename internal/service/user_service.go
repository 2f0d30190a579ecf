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
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/password"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

// UserService covers account administration beyond the login flows.
type UserService struct {
	users  repository.UserRepository
	node   *snowflake.Node
	logger *zap.Logger
	tracer trace.Tracer
}

func NewUserService(users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		node:   node,
		logger: logger,
		tracer: otel.Tracer("service.user"),
	}
}

// Get returns one account. Non-admins can only fetch themselves.
func (s *UserService) Get(ctx context.Context, actor domain.User, id int64) (UserView, error) {
	if actor.ID != id && !actor.IsAdmin() {
		return UserView{}, autherr.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserView{}, autherr.ErrUserNotFound
		}
		return UserView{}, err
	}
	return toUserView(user), nil
}

// List returns a page of accounts matching the optional name/email search.
func (s *UserService) List(ctx context.Context, search string, page, limit int) ([]UserView, error) {
	ctx, span := s.tracer.Start(ctx, "user.list")
	defer span.End()

	page, limit = normalizePage(page, limit)
	users, err := s.users.List(ctx, repository.ListUsersParams{
		Search: strings.TrimSpace(search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return views, nil
}

// ListAll returns every account. Admin only.
func (s *UserService) ListAll(ctx context.Context, actor domain.User) ([]UserView, error) {
	if !actor.IsAdmin() {
		return nil, autherr.ErrForbidden
	}
	users, err := s.users.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, toUserView(u))
	}
	return views, nil
}

// UpdateUserInput carries the mutable account fields. Nil means unchanged.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Update edits an account. Non-admins can only edit themselves.
func (s *UserService) Update(ctx context.Context, actor domain.User, id int64, in UpdateUserInput) (UserView, error) {
	ctx, span := s.tracer.Start(ctx, "user.update")
	defer span.End()

	if actor.ID != id && !actor.IsAdmin() {
		return UserView{}, autherr.ErrForbidden
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserView{}, autherr.ErrUserNotFound
		}
		return UserView{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return UserView{}, fmt.Errorf("%w: name cannot be empty", autherr.ErrValidation)
		}
		user.Name = name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if !validEmail(email) {
			return UserView{}, fmt.Errorf("%w: valid email is required", autherr.ErrValidation)
		}
		if email != user.Email {
			user.Email = email
			user.EmailVerified = false
		}
	}
	if in.Password != nil {
		if *in.Password == "" {
			return UserView{}, fmt.Errorf("%w: password cannot be empty", autherr.ErrValidation)
		}
		hash, err := password.Hash(*in.Password)
		if err != nil {
			return UserView{}, err
		}
		user.PasswordHash = hash
	}

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return UserView{}, autherr.ErrEmailTaken
		}
		return UserView{}, err
	}
	s.logger.Info("user.updated", zap.Int64("user_id", updated.ID))
	return toUserView(updated), nil
}

// Delete removes an account and, through cascade, its sessions and data.
// Admin only.
func (s *UserService) Delete(ctx context.Context, actor domain.User, id int64) error {
	ctx, span := s.tracer.Start(ctx, "user.delete")
	defer span.End()

	if !actor.IsAdmin() {
		return autherr.ErrForbidden
	}
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrUserNotFound
		}
		return err
	}
	s.logger.Info("user.deleted", zap.Int64("user_id", id))
	return nil
}

// BulkCreateInput is one account in a bulk import.
type BulkCreateInput struct {
	Name     string
	Email    string
	Password string
}

// BulkCreate imports several password accounts at once. Rows that collide
// with an existing email are skipped and reported back. Admin only.
func (s *UserService) BulkCreate(ctx context.Context, actor domain.User, inputs []BulkCreateInput) ([]UserView, []string, error) {
	ctx, span := s.tracer.Start(ctx, "user.bulk_create")
	defer span.End()

	if !actor.IsAdmin() {
		return nil, nil, autherr.ErrForbidden
	}
	if len(inputs) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one user is required", autherr.ErrValidation)
	}

	created := make([]UserView, 0, len(inputs))
	var skipped []string
	for _, in := range inputs {
		email := strings.ToLower(strings.TrimSpace(in.Email))
		name := strings.TrimSpace(in.Name)
		if name == "" || !validEmail(email) || in.Password == "" {
			return nil, nil, fmt.Errorf("%w: every user needs name, email and password", autherr.ErrValidation)
		}
		hash, err := password.Hash(in.Password)
		if err != nil {
			return nil, nil, err
		}
		user := domain.User{
			ID:           s.node.Generate().Int64(),
			Name:         name,
			Email:        email,
			PasswordHash: hash,
			AuthProvider: domain.ProviderEmail,
			Role:         domain.RoleUser,
		}
		inserted, err := s.users.Create(ctx, user)
		if err != nil {
			if repository.IsUniqueViolation(err) {
				skipped = append(skipped, email)
				continue
			}
			return nil, nil, err
		}
		created = append(created, toUserView(inserted))
	}

	s.logger.Info("user.bulk_created", zap.Int("created", len(created)), zap.Int("skipped", len(skipped)))
	return created, skipped, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
