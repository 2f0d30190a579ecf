// Package identity maps credentials and verified external claims onto a
// single user record per person.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/federated"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/password"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

// Resolver resolves login identifiers to user records, creating records on
// first contact for the OTP and federated flows.
type Resolver struct {
	users repository.UserRepository
	node  *snowflake.Node
}

func NewResolver(users repository.UserRepository, node *snowflake.Node) *Resolver {
	return &Resolver{users: users, node: node}
}

// ByPassword authenticates an email/password pair. Unknown email, missing
// password hash, and wrong password all collapse into ErrInvalidCredentials.
func (r *Resolver) ByPassword(ctx context.Context, email, plain string) (domain.User, error) {
	user, err := r.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, autherr.ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" || !password.Verify(plain, user.PasswordHash) {
		return domain.User{}, autherr.ErrInvalidCredentials
	}
	return user, nil
}

// OrCreateByEmailOTP returns the account owning the email, provisioning one
// on first verification. A provisioned account carries no password.
func (r *Resolver) OrCreateByEmailOTP(ctx context.Context, email string) (domain.User, error) {
	email = normalizeEmail(email)
	user, err := r.users.GetByEmail(ctx, email)
	if err == nil {
		if !user.EmailVerified {
			user.EmailVerified = true
			return r.users.Update(ctx, user)
		}
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	candidate := domain.User{
		ID:            r.node.Generate().Int64(),
		Name:          nameFromEmail(email),
		Email:         email,
		EmailVerified: true,
		AuthProvider:  domain.ProviderEmail,
		Role:          domain.RoleUser,
	}
	return r.create(ctx, candidate, func(ctx context.Context) (domain.User, error) {
		return r.users.GetByEmail(ctx, email)
	})
}

// OrCreateByPhoneOTP returns the account owning the phone number,
// provisioning one on first verification.
func (r *Resolver) OrCreateByPhoneOTP(ctx context.Context, phone string) (domain.User, error) {
	phone = strings.TrimSpace(phone)
	user, err := r.users.GetByPhone(ctx, phone)
	if err == nil {
		if !user.PhoneVerified {
			user.PhoneVerified = true
			return r.users.Update(ctx, user)
		}
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	candidate := domain.User{
		ID:            r.node.Generate().Int64(),
		Name:          phone,
		Phone:         phone,
		PhoneVerified: true,
		AuthProvider:  domain.ProviderPhone,
		Role:          domain.RoleUser,
	}
	return r.create(ctx, candidate, func(ctx context.Context) (domain.User, error) {
		return r.users.GetByPhone(ctx, phone)
	})
}

// OrCreateByExternalIdentity resolves a verified federated identity to an
// account. The provider must attest a verified email; identities without one
// are rejected rather than creating an unreachable account.
func (r *Resolver) OrCreateByExternalIdentity(ctx context.Context, id federated.Identity) (domain.User, error) {
	if !id.EmailVerified || strings.TrimSpace(id.Email) == "" {
		return domain.User{}, autherr.ErrIdentityIncomplete
	}
	email := normalizeEmail(id.Email)

	user, err := r.users.GetByExternalID(ctx, id.SubjectID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	// First contact from this provider. Attach to an existing account with
	// the same email if one exists.
	user, err = r.users.GetByEmail(ctx, email)
	if err == nil {
		user.ExternalSubjectID = id.SubjectID
		user.EmailVerified = true
		return r.users.Update(ctx, user)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = nameFromEmail(email)
	}
	candidate := domain.User{
		ID:                r.node.Generate().Int64(),
		Name:              name,
		Email:             email,
		EmailVerified:     true,
		AuthProvider:      domain.ProviderGoogle,
		ExternalSubjectID: id.SubjectID,
		Role:              domain.RoleUser,
	}
	return r.create(ctx, candidate, func(ctx context.Context) (domain.User, error) {
		return r.users.GetByEmail(ctx, email)
	})
}

// create inserts optimistically. A unique violation means a concurrent
// request won the insert, so the losing side retries as a lookup.
func (r *Resolver) create(ctx context.Context, candidate domain.User, lookup func(context.Context) (domain.User, error)) (domain.User, error) {
	created, err := r.users.Create(ctx, candidate)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			user, lerr := lookup(ctx)
			if lerr != nil {
				return domain.User{}, fmt.Errorf("%w: concurrent signup", autherr.ErrConflict)
			}
			return user, nil
		}
		return domain.User{}, err
	}
	return created, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}
