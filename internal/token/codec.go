// Package token signs and verifies the compact claims structures used as
// access and refresh tokens. Tokens are stateless HS256 JWTs; server-side
// revocation is layered on top through the refresh-token store, not here.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	autherr "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/domain/auth"
)

// TypeRefresh is the type claim embedded in refresh tokens. Access tokens
// carry no type claim, so a valid signature alone never lets one class of
// token stand in for the other.
const TypeRefresh = "refresh"

// Claims is the verified payload of a token.
type Claims struct {
	Subject string
	Expiry  time.Time
	Type    string
}

type typedClaims struct {
	Type string `json:"type,omitempty"`
}

// Codec signs and verifies access and refresh tokens with independent
// secrets and expiry policies.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewCodec constructs a codec. The two secrets must already be distinct;
// config validation enforces that.
func NewCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// SignAccess mints an access token with {sub, exp} signed by the access secret.
func (c *Codec) SignAccess(subject string, now time.Time) (string, error) {
	return c.sign(c.accessSecret, subject, "", now, c.accessTTL)
}

// SignRefresh mints a refresh token with {sub, exp, type:"refresh"} signed
// by the refresh secret.
func (c *Codec) SignRefresh(subject string, now time.Time) (string, error) {
	return c.sign(c.refreshSecret, subject, TypeRefresh, now, c.refreshTTL)
}

func (c *Codec) sign(secret []byte, subject, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: token subject required", autherr.ErrValidation)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: secret},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	// The jti keeps tokens minted within the same second distinct; the
	// refresh store has a unique constraint on the serialized token.
	std := gojwt.Claims{
		ID:       uuid.NewString(),
		Subject:  subject,
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(now.Add(ttl)),
	}

	builder := gojwt.Signed(signer).Claims(std)
	if tokenType != "" {
		builder = builder.Claims(typedClaims{Type: tokenType})
	}

	out, err := builder.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize token: %w", err)
	}
	return out, nil
}

// VerifyAccess checks an access token against the access secret. It also
// rejects tokens carrying a type claim, so refresh tokens that happen to be
// signed with the access secret still cannot pass as access tokens.
func (c *Codec) VerifyAccess(token string) (Claims, error) {
	claims, err := c.verify(c.accessSecret, token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != "" {
		return Claims{}, autherr.ErrWrongTokenType
	}
	return claims, nil
}

// VerifyRefresh checks a refresh token against the refresh secret and
// requires the type claim to be "refresh".
func (c *Codec) VerifyRefresh(token string) (Claims, error) {
	claims, err := c.verify(c.refreshSecret, token)
	if err != nil {
		return Claims{}, err
	}
	if claims.Type != TypeRefresh {
		return Claims{}, autherr.ErrWrongTokenType
	}
	return claims, nil
}

func (c *Codec) verify(secret []byte, token string) (Claims, error) {
	parsed, err := gojwt.ParseSigned(token, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, autherr.ErrMalformedToken
	}

	var std gojwt.Claims
	var typed typedClaims
	if err := parsed.Claims(secret, &std, &typed); err != nil {
		return Claims{}, autherr.ErrMalformedToken
	}

	if err := std.ValidateWithLeeway(gojwt.Expected{Time: time.Now()}, 0); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return Claims{}, autherr.ErrExpiredToken
		}
		return Claims{}, autherr.ErrMalformedToken
	}

	var expiry time.Time
	if std.Expiry != nil {
		expiry = std.Expiry.Time()
	}
	return Claims{Subject: std.Subject, Expiry: expiry, Type: typed.Type}, nil
}
