package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/adapter/cache"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/config"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/federated"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/identity"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/token"
)

func uniqueViolation() error {
	return &pgconn.PgError{Code: "23505"}
}

type memoryUserRepo struct {
	users map[int64]domain.User
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]domain.User)}
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
	for _, u := range m.users {
		if (user.Email != "" && u.Email == user.Email) ||
			(user.Phone != "" && u.Phone == user.Phone) ||
			(user.ExternalSubjectID != "" && u.ExternalSubjectID == user.ExternalSubjectID) {
			return domain.User{}, uniqueViolation()
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryUserRepo) Update(_ context.Context, user domain.User) (domain.User, error) {
	if _, ok := m.users[user.ID]; !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
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

type memoryTokenRepo struct {
	tokens map[string]domain.RefreshToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]domain.RefreshToken)}
}

func (m *memoryTokenRepo) Insert(_ context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	if _, ok := m.tokens[t.Token]; ok {
		return domain.RefreshToken{}, uniqueViolation()
	}
	t.CreatedAt = time.Now()
	m.tokens[t.Token] = t
	return t, nil
}

func (m *memoryTokenRepo) GetByToken(_ context.Context, raw string) (domain.RefreshToken, error) {
	if t, ok := m.tokens[raw]; ok {
		return t, nil
	}
	return domain.RefreshToken{}, pgx.ErrNoRows
}

func (m *memoryTokenRepo) Revoke(_ context.Context, raw string) error {
	t, ok := m.tokens[raw]
	if !ok || t.Revoked {
		return pgx.ErrNoRows
	}
	t.Revoked = true
	m.tokens[raw] = t
	return nil
}

func (m *memoryTokenRepo) RevokeAllForUser(_ context.Context, userID int64) error {
	for raw, t := range m.tokens {
		if t.UserID == userID {
			t.Revoked = true
			m.tokens[raw] = t
		}
	}
	return nil
}

func (m *memoryTokenRepo) ReplaceActive(ctx context.Context, t domain.RefreshToken) (domain.RefreshToken, error) {
	if err := m.RevokeAllForUser(ctx, t.UserID); err != nil {
		return domain.RefreshToken{}, err
	}
	return m.Insert(ctx, t)
}

type memoryOTPRepo struct {
	codes []domain.OTPCode
}

func (m *memoryOTPRepo) Insert(_ context.Context, code domain.OTPCode) (domain.OTPCode, error) {
	code.CreatedAt = time.Now()
	m.codes = append(m.codes, code)
	return code, nil
}

func (m *memoryOTPRepo) LatestUnverified(_ context.Context, identifier string, now time.Time) (domain.OTPCode, error) {
	for i := len(m.codes) - 1; i >= 0; i-- {
		c := m.codes[i]
		if c.Identifier == identifier && !c.Verified && c.ExpiresAt.After(now) {
			return c, nil
		}
	}
	return domain.OTPCode{}, pgx.ErrNoRows
}

func (m *memoryOTPRepo) MarkVerified(_ context.Context, id int64) error {
	for i, c := range m.codes {
		if c.ID == id && !c.Verified {
			m.codes[i].Verified = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

type recordingSender struct {
	lastIdentifier string
	lastCode       string
	err            error
}

func (s *recordingSender) SendOTP(_ context.Context, identifier, code string) error {
	if s.err != nil {
		return s.err
	}
	s.lastIdentifier = identifier
	s.lastCode = code
	return nil
}

type stubVerifier struct {
	identity federated.Identity
	err      error
}

func (v *stubVerifier) Verify(context.Context, string) (federated.Identity, error) {
	return v.identity, v.err
}

type denyCooldown struct{}

func (denyCooldown) Reserve(context.Context, string, time.Duration) (bool, error) {
	return false, nil
}

type authFixture struct {
	svc      *AuthService
	users    *memoryUserRepo
	tokens   *memoryTokenRepo
	otps     *memoryOTPRepo
	sender   *recordingSender
	verifier *stubVerifier
	cfg      config.Config
}

func newAuthFixture(t *testing.T, mutate ...func(*config.Config)) *authFixture {
	t.Helper()

	cfg := config.Config{
		AccessTokenSecret:  "access-secret-for-tests",
		RefreshTokenSecret: "refresh-secret-for-tests",
		AccessTokenTTL:     30 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,
		OTPTTL:             5 * time.Minute,
		OTPSendTimeout:     5 * time.Second,
		OTPCooldown:        30 * time.Second,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users := newMemoryUserRepo()
	tokens := newMemoryTokenRepo()
	otps := &memoryOTPRepo{}
	sender := &recordingSender{}
	verifier := &stubVerifier{}
	codec := token.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	resolver := identity.NewResolver(users, node)

	svc := NewAuthService(cfg, users, tokens, otps, resolver, codec, sender, verifier, cache.NoopCooldownStore{}, node, zap.NewNop())
	return &authFixture{svc: svc, users: users, tokens: tokens, otps: otps, sender: sender, verifier: verifier, cfg: cfg}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	view, err := f.svc.Register(ctx, "Alice", "Alice@Example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, domain.RoleUser, view.Role)

	pair, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)

	user, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Other Alice", "alice@example.com", "different")
	assert.ErrorIs(t, err, autherr.ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, autherr.ErrInvalidCredentials)
}

func TestSecondLoginRevokesFirstSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	first, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)
	second, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFoundOrRevoked)

	pair, err := f.svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestRefreshKeepsSameRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	login, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	pair, err := f.svc.Refresh(ctx, login.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, login.RefreshToken, pair.RefreshToken)

	_, err = f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	login, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, login.AccessToken)
	assert.ErrorIs(t, err, autherr.ErrMalformedToken)
}

func TestLogoutRevokesRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	login, err := f.svc.Login(ctx, "alice@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, login.RefreshToken))

	_, err = f.svc.Refresh(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFoundOrRevoked)

	// A second logout finds nothing left to revoke.
	err = f.svc.Logout(ctx, login.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrInvalidToken)
}

func TestEmailOTPFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	require.NotEmpty(t, f.sender.lastCode)
	assert.Equal(t, "new@example.com", f.sender.lastIdentifier)

	pair, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)

	user, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.True(t, user.EmailVerified)
	assert.Empty(t, user.PasswordHash)
}

func TestOTPIsSingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	code := f.sender.lastCode

	_, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", code)
	require.NoError(t, err)

	_, err = f.svc.VerifyEmailOTP(ctx, "new@example.com", code)
	assert.ErrorIs(t, err, autherr.ErrInvalidOrExpiredOTP)
}

func TestOTPWrongCode(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	wrong := "000000"
	if f.sender.lastCode == wrong {
		wrong = "111111"
	}

	_, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", wrong)
	assert.ErrorIs(t, err, autherr.ErrInvalidOrExpiredOTP)
}

func TestOTPExpires(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.Config) {
		cfg.OTPTTL = -time.Minute
	})
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))

	_, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	assert.ErrorIs(t, err, autherr.ErrInvalidOrExpiredOTP)
}

func TestNewestOTPWins(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	firstCode := f.sender.lastCode
	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	secondCode := f.sender.lastCode

	if firstCode != secondCode {
		_, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", firstCode)
		assert.ErrorIs(t, err, autherr.ErrInvalidOrExpiredOTP)
	}

	_, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", secondCode)
	require.NoError(t, err)
}

func TestPhoneOTPFlow(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendPhoneOTP(ctx, "+15550001111"))

	pair, err := f.svc.VerifyPhoneOTP(ctx, "+15550001111", f.sender.lastCode)
	require.NoError(t, err)

	user, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "+15550001111", user.Phone)
	assert.True(t, user.PhoneVerified)
	assert.Equal(t, domain.ProviderPhone, user.AuthProvider)
}

func TestSendOTPDeliveryFailureSurfaces(t *testing.T) {
	f := newAuthFixture(t)
	f.sender.err = &autherr.DeliveryError{Err: context.DeadlineExceeded}

	err := f.svc.SendEmailOTP(context.Background(), "new@example.com")
	var delivery *autherr.DeliveryError
	assert.ErrorAs(t, err, &delivery)
}

func TestSendOTPCooldown(t *testing.T) {
	f := newAuthFixture(t)
	f.svc.cooldown = denyCooldown{}

	err := f.svc.SendEmailOTP(context.Background(), "new@example.com")
	assert.ErrorIs(t, err, autherr.ErrRateLimited)
}

func TestFederatedLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	f.verifier.identity = federated.Identity{
		SubjectID:     "google-sub-1",
		Email:         "fed@example.com",
		EmailVerified: true,
		Name:          "Fed User",
	}

	pair, err := f.svc.VerifyExternal(ctx, "provider-token")
	require.NoError(t, err)

	user, err := f.svc.Authenticate(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogle, user.AuthProvider)
	assert.Equal(t, "google-sub-1", user.ExternalSubjectID)
}

func TestFederatedLoginRequiresVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.verifier.identity = federated.Identity{SubjectID: "google-sub-1", Email: "fed@example.com"}

	_, err := f.svc.VerifyExternal(context.Background(), "provider-token")
	assert.ErrorIs(t, err, autherr.ErrIdentityIncomplete)
}

func TestFederatedLoginRejectsBadToken(t *testing.T) {
	f := newAuthFixture(t)
	f.verifier.err = autherr.ErrMalformedToken

	_, err := f.svc.VerifyExternal(context.Background(), "garbage")
	assert.ErrorIs(t, err, autherr.ErrMalformedToken)
}

func TestSingleSessionAllFlows(t *testing.T) {
	f := newAuthFixture(t, func(cfg *config.Config) {
		cfg.SingleSessionAllFlows = true
	})
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	first, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	require.NoError(t, err)

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	_, err = f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, autherr.ErrTokenNotFoundOrRevoked)
}

func TestOTPLoginKeepsOtherSessionsByDefault(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	first, err := f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	require.NoError(t, err)

	require.NoError(t, f.svc.SendEmailOTP(ctx, "new@example.com"))
	_, err = f.svc.VerifyEmailOTP(ctx, "new@example.com", f.sender.lastCode)
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
}
