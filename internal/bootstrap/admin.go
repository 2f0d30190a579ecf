// Package bootstrap seeds required records at startup.
package bootstrap

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/config"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/password"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

// EnsureAdmin guarantees the configured admin account exists and carries
// the admin role. It is a no-op when no admin credentials are configured.
func EnsureAdmin(ctx context.Context, cfg config.Config, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || cfg.AdminPassword == "" {
		logger.Debug("bootstrap.admin_skipped")
		return nil
	}

	existing, err := users.GetByEmail(ctx, email)
	if err == nil {
		if existing.Role == domain.RoleAdmin {
			return nil
		}
		existing.Role = domain.RoleAdmin
		if _, err := users.Update(ctx, existing); err != nil {
			return err
		}
		logger.Info("bootstrap.admin_promoted", zap.Int64("user_id", existing.ID))
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := domain.User{
		ID:            node.Generate().Int64(),
		Name:          "admin",
		Email:         email,
		EmailVerified: true,
		PasswordHash:  hash,
		AuthProvider:  domain.ProviderEmail,
		Role:          domain.RoleAdmin,
	}
	if _, err := users.Create(ctx, admin); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil
		}
		return err
	}
	logger.Info("bootstrap.admin_created", zap.Int64("user_id", admin.ID))
	return nil
}
