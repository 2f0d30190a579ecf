package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/adapter/cache"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/config"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain"
	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/federated"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/identity"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/notify"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/otp"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/password"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/token"
)

// AuthService owns the session lifecycle: registration, every login flow,
// token issuance, refresh, and revocation.
type AuthService struct {
	cfg      config.Config
	users    repository.UserRepository
	tokens   repository.TokenRepository
	otps     repository.OTPRepository
	resolver *identity.Resolver
	codec    *token.Codec
	sender   notify.Sender
	verifier federated.Verifier
	cooldown cache.CooldownStore
	node     *snowflake.Node
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewAuthService(
	cfg config.Config,
	users repository.UserRepository,
	tokens repository.TokenRepository,
	otps repository.OTPRepository,
	resolver *identity.Resolver,
	codec *token.Codec,
	sender notify.Sender,
	verifier federated.Verifier,
	cooldown cache.CooldownStore,
	node *snowflake.Node,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		otps:     otps,
		resolver: resolver,
		codec:    codec,
		sender:   sender,
		verifier: verifier,
		cooldown: cooldown,
		node:     node,
		logger:   logger,
		tracer:   otel.Tracer("service.auth"),
	}
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) audit(event string, fields ...zap.Field) {
	s.logger.Info(event, fields...)
}

// Register creates a password account. The new account is not logged in;
// the caller must follow with Login.
func (s *AuthService) Register(ctx context.Context, name, email, plain string) (UserView, error) {
	ctx, span := s.startSpan(ctx, "auth.register")
	defer span.End()

	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || !validEmail(email) || plain == "" {
		return UserView{}, fmt.Errorf("%w: name, email and password are required", autherr.ErrValidation)
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return UserView{}, err
	}
	user := domain.User{
		ID:           s.node.Generate().Int64(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		AuthProvider: domain.ProviderEmail,
		Role:         domain.RoleUser,
	}
	created, err := s.users.Create(ctx, user)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return UserView{}, autherr.ErrEmailTaken
		}
		return UserView{}, err
	}

	s.audit("auth.register", zap.Int64("user_id", created.ID))
	return toUserView(created), nil
}

// Login authenticates an email/password pair and establishes a session.
// Any refresh tokens the account still holds are revoked in the same
// transaction that records the new one, so only one session survives.
func (s *AuthService) Login(ctx context.Context, email, plain string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "auth.login")
	defer span.End()

	user, err := s.resolver.ByPassword(ctx, email, plain)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := s.issueSession(ctx, user, true)
	if err != nil {
		return TokenPair{}, err
	}
	s.audit("auth.login", zap.Int64("user_id", user.ID))
	return pair, nil
}

// SendEmailOTP generates and delivers a one-time code for the email flow.
func (s *AuthService) SendEmailOTP(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return fmt.Errorf("%w: valid email is required", autherr.ErrValidation)
	}
	return s.sendOTP(ctx, email)
}

// SendPhoneOTP generates and delivers a one-time code for the phone flow.
func (s *AuthService) SendPhoneOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone number is required", autherr.ErrValidation)
	}
	return s.sendOTP(ctx, phone)
}

func (s *AuthService) sendOTP(ctx context.Context, identifier string) error {
	ctx, span := s.startSpan(ctx, "auth.send_otp")
	defer span.End()

	ok, err := s.cooldown.Reserve(ctx, identifier, s.cfg.OTPCooldown)
	if err != nil {
		s.logger.Warn("otp.cooldown_unavailable", zap.Error(err))
	} else if !ok {
		return autherr.ErrRateLimited
	}

	code, err := otp.Generate()
	if err != nil {
		return err
	}
	hash, err := otp.Hash(code)
	if err != nil {
		return err
	}
	record := domain.OTPCode{
		ID:         s.node.Generate().Int64(),
		Identifier: identifier,
		OTPHash:    hash,
		ExpiresAt:  time.Now().Add(s.cfg.OTPTTL),
	}
	if _, err := s.otps.Insert(ctx, record); err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.OTPSendTimeout)
	defer cancel()
	if err := s.sender.SendOTP(sendCtx, identifier, code); err != nil {
		s.logger.Error("otp.delivery_failed", zap.Error(err))
		return err
	}

	s.audit("auth.otp_sent", zap.String("identifier", identifier))
	return nil
}

// VerifyEmailOTP consumes a code sent to an email address and establishes a
// session, creating the account on first verification.
func (s *AuthService) VerifyEmailOTP(ctx context.Context, email, code string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "auth.verify_email_otp")
	defer span.End()

	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) || code == "" {
		return TokenPair{}, fmt.Errorf("%w: email and otp are required", autherr.ErrValidation)
	}
	if err := s.consumeOTP(ctx, email, code); err != nil {
		return TokenPair{}, err
	}

	user, err := s.resolver.OrCreateByEmailOTP(ctx, email)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issueSession(ctx, user, s.cfg.SingleSessionAllFlows)
	if err != nil {
		return TokenPair{}, err
	}
	s.audit("auth.otp_login", zap.Int64("user_id", user.ID), zap.String("provider", domain.ProviderEmail))
	return pair, nil
}

// VerifyPhoneOTP consumes a code sent to a phone number and establishes a
// session, creating the account on first verification.
func (s *AuthService) VerifyPhoneOTP(ctx context.Context, phone, code string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "auth.verify_phone_otp")
	defer span.End()

	phone = strings.TrimSpace(phone)
	if phone == "" || code == "" {
		return TokenPair{}, fmt.Errorf("%w: phone and otp are required", autherr.ErrValidation)
	}
	if err := s.consumeOTP(ctx, phone, code); err != nil {
		return TokenPair{}, err
	}

	user, err := s.resolver.OrCreateByPhoneOTP(ctx, phone)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issueSession(ctx, user, s.cfg.SingleSessionAllFlows)
	if err != nil {
		return TokenPair{}, err
	}
	s.audit("auth.otp_login", zap.Int64("user_id", user.ID), zap.String("provider", domain.ProviderPhone))
	return pair, nil
}

// consumeOTP matches the code against the newest pending code for the
// identifier and burns it. A code verifies exactly once.
func (s *AuthService) consumeOTP(ctx context.Context, identifier, code string) error {
	record, err := s.otps.LatestUnverified(ctx, identifier, time.Now())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrInvalidOrExpiredOTP
		}
		return err
	}
	if !otp.Verify(code, record.OTPHash) {
		return autherr.ErrInvalidOrExpiredOTP
	}
	if err := s.otps.MarkVerified(ctx, record.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrInvalidOrExpiredOTP
		}
		return err
	}
	return nil
}

// VerifyExternal exchanges a federated provider token for a session,
// creating or linking the account as needed.
func (s *AuthService) VerifyExternal(ctx context.Context, providerToken string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "auth.verify_external")
	defer span.End()

	if strings.TrimSpace(providerToken) == "" {
		return TokenPair{}, fmt.Errorf("%w: id_token is required", autherr.ErrValidation)
	}
	claims, err := s.verifier.Verify(ctx, providerToken)
	if err != nil {
		return TokenPair{}, err
	}

	user, err := s.resolver.OrCreateByExternalIdentity(ctx, claims)
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := s.issueSession(ctx, user, s.cfg.SingleSessionAllFlows)
	if err != nil {
		return TokenPair{}, err
	}
	s.audit("auth.federated_login", zap.Int64("user_id", user.ID), zap.String("provider", user.AuthProvider))
	return pair, nil
}

// Refresh exchanges a live refresh token for a new access token. The
// refresh token itself is returned unchanged and stays valid until it
// expires or is revoked.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx, span := s.startSpan(ctx, "auth.refresh")
	defer span.End()

	if _, err := s.codec.VerifyRefresh(refreshToken); err != nil {
		return TokenPair{}, err
	}
	stored, err := s.tokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TokenPair{}, autherr.ErrTokenNotFoundOrRevoked
		}
		return TokenPair{}, err
	}
	if !stored.Active(time.Now()) {
		return TokenPair{}, autherr.ErrTokenNotFoundOrRevoked
	}

	access, err := s.codec.SignAccess(strconv.FormatInt(stored.UserID, 10), time.Now())
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refreshToken, TokenType: tokenTypeBearer}, nil
}

// Logout revokes the presented refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := s.startSpan(ctx, "auth.logout")
	defer span.End()

	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh_token is required", autherr.ErrValidation)
	}
	if err := s.tokens.Revoke(ctx, refreshToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return autherr.ErrInvalidToken
		}
		return err
	}
	s.audit("auth.logout")
	return nil
}

// Authenticate resolves a bearer access token to its account.
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (domain.User, error) {
	claims, err := s.codec.VerifyAccess(accessToken)
	if err != nil {
		return domain.User{}, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return domain.User{}, autherr.ErrMalformedToken
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, autherr.ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// issueSession signs an access/refresh pair and records the refresh token.
// With replace set, every other active refresh token for the account is
// revoked in the same transaction.
func (s *AuthService) issueSession(ctx context.Context, user domain.User, replace bool) (TokenPair, error) {
	now := time.Now()
	subject := strconv.FormatInt(user.ID, 10)

	access, err := s.codec.SignAccess(subject, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.codec.SignRefresh(subject, now)
	if err != nil {
		return TokenPair{}, err
	}

	record := domain.RefreshToken{
		ID:        s.node.Generate().Int64(),
		Token:     refresh,
		UserID:    user.ID,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}
	if replace {
		_, err = s.tokens.ReplaceActive(ctx, record)
	} else {
		_, err = s.tokens.Insert(ctx, record)
	}
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, TokenType: tokenTypeBearer}, nil
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1
}
