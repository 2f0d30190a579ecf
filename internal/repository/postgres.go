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

// Compile-time interface assertions.
var (
	_ UserRepository  = (*PostgresUserRepo)(nil)
	_ TokenRepository = (*PostgresTokenRepo)(nil)
	_ OTPRepository   = (*PostgresOTPRepo)(nil)
)

const userColumns = `id, name, email, email_verified, phone, phone_verified, password_hash, auth_provider, external_subject_id, role, created_at, updated_at`

// PostgresUserRepo implements UserRepository over pgx.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

func (r *PostgresUserRepo) GetByID(ctx context.Context, id int64) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *PostgresUserRepo) GetByPhone(ctx context.Context, phone string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone)
}

func (r *PostgresUserRepo) GetByExternalID(ctx context.Context, subjectID string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE external_subject_id = $1`, subjectID)
}

func (r *PostgresUserRepo) one(ctx context.Context, query string, arg any) (domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, name, email, email_verified, phone, phone_verified, password_hash, auth_provider, external_subject_id, role)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.Name,
		nullable(user.Email),
		user.EmailVerified,
		nullable(user.Phone),
		user.PhoneVerified,
		user.PasswordHash,
		user.AuthProvider,
		nullable(user.ExternalSubjectID),
		user.Role,
	)
	inserted, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return inserted, nil
}

const updateUserSQL = `UPDATE users
SET name = $2, email = $3, email_verified = $4, phone = $5, phone_verified = $6, password_hash = $7, external_subject_id = $8, role = $9, updated_at = now()
WHERE id = $1
RETURNING ` + userColumns

func (r *PostgresUserRepo) Update(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, updateUserSQL,
		user.ID,
		user.Name,
		nullable(user.Email),
		user.EmailVerified,
		nullable(user.Phone),
		user.PhoneVerified,
		user.PasswordHash,
		nullable(user.ExternalSubjectID),
		user.Role,
	)
	updated, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

func (r *PostgresUserRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user: %w", pgx.ErrNoRows)
	}
	return nil
}

func (r *PostgresUserRepo) List(ctx context.Context, params ListUsersParams) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	if s := strings.TrimSpace(params.Search); s != "" {
		query += ` WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+s+"%")
	}
	query += fmt.Sprintf(` ORDER BY id LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, params.Limit, params.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *PostgresUserRepo) ListAll(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list all users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user       domain.User
		email      sql.NullString
		phone      sql.NullString
		externalID sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&email,
		&user.EmailVerified,
		&phone,
		&user.PhoneVerified,
		&user.PasswordHash,
		&user.AuthProvider,
		&externalID,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	user.Email = email.String
	user.Phone = phone.String
	user.ExternalSubjectID = externalID.String
	return user, nil
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

// PostgresTokenRepo implements TokenRepository.
type PostgresTokenRepo struct {
	db *pgxpool.Pool
}

func NewPostgresTokenRepo(pool *pgxpool.Pool) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: pool}
}

const tokenColumns = `id, token, user_id, expires_at, revoked, created_at`

const insertTokenSQL = `INSERT INTO refresh_tokens (id, token, user_id, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + tokenColumns

func (r *PostgresTokenRepo) Insert(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, insertTokenSQL, token.ID, token.Token, token.UserID, token.ExpiresAt)
	inserted, err := scanToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}
	return inserted, nil
}

func (r *PostgresTokenRepo) GetByToken(ctx context.Context, token string) (domain.RefreshToken, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tokenColumns+` FROM refresh_tokens WHERE token = $1`, token)
	found, err := scanToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	return found, nil
}

func (r *PostgresTokenRepo) Revoke(ctx context.Context, token string) error {
	tag, err := r.db.Exec(ctx, `UPDATE refresh_tokens SET revoked = true WHERE token = $1 AND revoked = false`, token)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("revoke refresh token: %w", pgx.ErrNoRows)
	}
	return nil
}

const revokeActiveSQL = `UPDATE refresh_tokens SET revoked = true WHERE user_id = $1 AND revoked = false`

func (r *PostgresTokenRepo) RevokeAllForUser(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, revokeActiveSQL, userID); err != nil {
		return fmt.Errorf("revoke active refresh tokens: %w", err)
	}
	return nil
}

// ReplaceActive applies revoke-then-insert atomically so a failure cannot
// leave the user without any session row while priors are already revoked.
func (r *PostgresTokenRepo) ReplaceActive(ctx context.Context, token domain.RefreshToken) (domain.RefreshToken, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("begin replace active: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, revokeActiveSQL, token.UserID); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("revoke active refresh tokens: %w", err)
	}

	row := tx.QueryRow(ctx, insertTokenSQL, token.ID, token.Token, token.UserID, token.ExpiresAt)
	inserted, err := scanToken(row)
	if err != nil {
		return domain.RefreshToken{}, fmt.Errorf("insert refresh token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RefreshToken{}, fmt.Errorf("commit replace active: %w", err)
	}
	return inserted, nil
}

func scanToken(row pgx.Row) (domain.RefreshToken, error) {
	var t domain.RefreshToken
	if err := row.Scan(&t.ID, &t.Token, &t.UserID, &t.ExpiresAt, &t.Revoked, &t.CreatedAt); err != nil {
		return domain.RefreshToken{}, err
	}
	return t, nil
}

// PostgresOTPRepo implements OTPRepository.
type PostgresOTPRepo struct {
	db *pgxpool.Pool
}

func NewPostgresOTPRepo(pool *pgxpool.Pool) *PostgresOTPRepo {
	return &PostgresOTPRepo{db: pool}
}

const otpColumns = `id, identifier, otp_hash, expires_at, verified, created_at`

func (r *PostgresOTPRepo) Insert(ctx context.Context, code domain.OTPCode) (domain.OTPCode, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO otp_codes (id, identifier, otp_hash, expires_at) VALUES ($1, $2, $3, $4) RETURNING `+otpColumns,
		code.ID, code.Identifier, code.OTPHash, code.ExpiresAt,
	)
	inserted, err := scanOTP(row)
	if err != nil {
		return domain.OTPCode{}, fmt.Errorf("insert otp: %w", err)
	}
	return inserted, nil
}

func (r *PostgresOTPRepo) LatestUnverified(ctx context.Context, identifier string, now time.Time) (domain.OTPCode, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+otpColumns+` FROM otp_codes
WHERE identifier = $1 AND verified = false AND expires_at > $2
ORDER BY created_at DESC
LIMIT 1`,
		identifier, now,
	)
	code, err := scanOTP(row)
	if err != nil {
		return domain.OTPCode{}, fmt.Errorf("get otp: %w", err)
	}
	return code, nil
}

func (r *PostgresOTPRepo) MarkVerified(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE otp_codes SET verified = true WHERE id = $1 AND verified = false`, id)
	if err != nil {
		return fmt.Errorf("mark otp verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark otp verified: %w", pgx.ErrNoRows)
	}
	return nil
}

func scanOTP(row pgx.Row) (domain.OTPCode, error) {
	var c domain.OTPCode
	if err := row.Scan(&c.ID, &c.Identifier, &c.OTPHash, &c.ExpiresAt, &c.Verified, &c.CreatedAt); err != nil {
		return domain.OTPCode{}, err
	}
	return c, nil
}
