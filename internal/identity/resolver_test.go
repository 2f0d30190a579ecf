package identity

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/federated"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/password"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
)

type memoryUserRepo struct {
	users map[int64]domain.User
	// failNextCreate simulates a concurrent insert winning the race;
	// raceWinner, when set, is the row the concurrent request inserted.
	failNextCreate bool
	raceWinner     *domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]domain.User)}
}

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

func (m *memoryUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	for _, u := range m.users {
		if u.Email != "" && u.Email == email {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByPhone(_ context.Context, phone string) (domain.User, error) {
	for _, u := range m.users {
		if u.Phone != "" && u.Phone == phone {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) GetByExternalID(_ context.Context, subjectID string) (domain.User, error) {
	for _, u := range m.users {
		if u.ExternalSubjectID != "" && u.ExternalSubjectID == subjectID {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *memoryUserRepo) Create(_ context.Context, user domain.User) (domain.User, error) {
	if m.failNextCreate {
		m.failNextCreate = false
		if m.raceWinner != nil {
			m.users[m.raceWinner.ID] = *m.raceWinner
		}
		return domain.User{}, uniqueViolation()
	}
	for _, u := range m.users {
		if (user.Email != "" && u.Email == user.Email) ||
			(user.Phone != "" && u.Phone == user.Phone) ||
			(user.ExternalSubjectID != "" && u.ExternalSubjectID == user.ExternalSubjectID) {
			return domain.User{}, uniqueViolation()
		}
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) Update(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.users[user.ID]; !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *memoryUserRepo) List(_ context.Context, _ repository.ListUsersParams) ([]domain.User, error) {
	return m.all(), nil
}

func (m *memoryUserRepo) ListAll(_ context.Context) ([]domain.User, error) {
	return m.all(), nil
}

func (m *memoryUserRepo) all() []domain.User {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out
}

func newTestResolver(t *testing.T) (*Resolver, *memoryUserRepo) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	repo := newMemoryUserRepo()
	return NewResolver(repo, node), repo
}

func seedPasswordUser(t *testing.T, repo *memoryUserRepo, email, plain string) domain.User {
	t.Helper()
	hash, err := password.Hash(plain)
	require.NoError(t, err)
	user := domain.User{
		ID:           1,
		Name:         "alice",
		Email:        email,
		PasswordHash: hash,
		AuthProvider: domain.ProviderEmail,
		Role:         domain.RoleUser,
	}
	repo.users[user.ID] = user
	return user
}

func TestByPassword(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seedPasswordUser(t, repo, "alice@example.com", "secret123")

	user, err := resolver.ByPassword(context.Background(), "Alice@Example.com ", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestByPasswordMergesFailureCauses(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seedPasswordUser(t, repo, "alice@example.com", "secret123")

	_, err := resolver.ByPassword(context.Background(), "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, err = resolver.ByPassword(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestByPasswordRejectsPasswordlessAccount(t *testing.T) {
	resolver, repo := newTestResolver(t)
	repo.users[7] = domain.User{ID: 7, Email: "otp-only@example.com", AuthProvider: domain.ProviderEmail}

	_, err := resolver.ByPassword(context.Background(), "otp-only@example.com", "anything")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestOrCreateByEmailOTPProvisionsAccount(t *testing.T) {
	resolver, _ := newTestResolver(t)

	user, err := resolver.OrCreateByEmailOTP(context.Background(), "New.Person@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "new.person@example.com", user.Email)
	assert.Equal(t, "new.person", user.Name)
	assert.True(t, user.EmailVerified)
	assert.Equal(t, domain.ProviderEmail, user.AuthProvider)
	assert.Empty(t, user.PasswordHash)

	again, err := resolver.OrCreateByEmailOTP(context.Background(), "new.person@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestOrCreateByEmailOTPMarksExistingVerified(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seeded := seedPasswordUser(t, repo, "alice@example.com", "secret123")
	require.False(t, seeded.EmailVerified)

	user, err := resolver.OrCreateByEmailOTP(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
	assert.True(t, user.EmailVerified)
}

func TestOrCreateByPhoneOTP(t *testing.T) {
	resolver, _ := newTestResolver(t)

	user, err := resolver.OrCreateByPhoneOTP(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", user.Phone)
	assert.True(t, user.PhoneVerified)
	assert.Equal(t, domain.ProviderPhone, user.AuthProvider)

	again, err := resolver.OrCreateByPhoneOTP(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestCreateRaceRetriesAsLookup(t *testing.T) {
	resolver, repo := newTestResolver(t)

	// The concurrent request inserts the row between our lookup and our
	// insert; the losing side must settle on the winner's row.
	repo.failNextCreate = true
	repo.raceWinner = &domain.User{ID: 9, Email: "racer@example.com", EmailVerified: true}

	user, err := resolver.OrCreateByEmailOTP(context.Background(), "racer@example.com ")
	require.NoError(t, err)
	assert.Equal(t, int64(9), user.ID)
}

func TestCreateRaceLookupStillMissing(t *testing.T) {
	resolver, repo := newTestResolver(t)
	repo.failNextCreate = true

	_, err := resolver.OrCreateByPhoneOTP(context.Background(), "+15550002222")
	assert.ErrorIs(t, err, autherr.ErrConflict)
}

func TestExternalIdentityRequiresVerifiedEmail(t *testing.T) {
	resolver, _ := newTestResolver(t)

	_, err := resolver.OrCreateByExternalIdentity(context.Background(), federated.Identity{
		SubjectID: "google-sub-1",
		Email:     "someone@example.com",
	})
	assert.ErrorIs(t, err, autherr.ErrIdentityIncomplete)

	_, err = resolver.OrCreateByExternalIdentity(context.Background(), federated.Identity{
		SubjectID:     "google-sub-1",
		EmailVerified: true,
	})
	assert.ErrorIs(t, err, autherr.ErrIdentityIncomplete)
}

func TestExternalIdentityProvisionsAccount(t *testing.T) {
	resolver, _ := newTestResolver(t)

	id := federated.Identity{
		SubjectID:     "google-sub-2",
		Email:         "Fed@Example.com",
		EmailVerified: true,
		Name:          "Fed User",
	}
	user, err := resolver.OrCreateByExternalIdentity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "fed@example.com", user.Email)
	assert.Equal(t, "Fed User", user.Name)
	assert.Equal(t, domain.ProviderGoogle, user.AuthProvider)
	assert.Equal(t, "google-sub-2", user.ExternalSubjectID)

	again, err := resolver.OrCreateByExternalIdentity(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
}

func TestExternalIdentityLinksByEmail(t *testing.T) {
	resolver, repo := newTestResolver(t)
	seeded := seedPasswordUser(t, repo, "alice@example.com", "secret123")

	user, err := resolver.OrCreateByExternalIdentity(context.Background(), federated.Identity{
		SubjectID:     "google-sub-3",
		Email:         "alice@example.com",
		EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, user.ID)
	assert.Equal(t, "google-sub-3", user.ExternalSubjectID)
	assert.True(t, user.EmailVerified)
}
