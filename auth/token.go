package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Role string

const (
	RoleLawyer Role = "lawyer"
	RoleClient Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleLawyer || r == RoleClient
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenRevoked = errors.New("token revoked")
)

// Claims is the bearer token payload.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric account id carried in the subject claim.
func (c *Claims) SubjectID() uint {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}

// RevocationStore remembers revoked token ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenIssuer signs and verifies HS256 bearer tokens with a shared secret.
type TokenIssuer struct {
	secret  []byte
	revoked RevocationStore
	now     func() time.Time
}

// NewTokenIssuer creates an issuer. revoked may be nil, in which case tokens stay valid until expiry.
func NewTokenIssuer(secret string, revoked RevocationStore) *TokenIssuer {
	return &TokenIssuer{
		secret:  []byte(secret),
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue mints a token for the subject. A non-positive ttl yields an already expired token.
func (i *TokenIssuer) Issue(subjectID uint, email string, role Role, ttl time.Duration) (string, *Claims, error) {
	if !role.Valid() {
		return "", nil, fmt.Errorf("issue token: unknown role %q", role)
	}

	now := i.now().UTC()
	claims := &Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(subjectID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks signature, expiry and revocation and returns the decoded claims.
func (i *TokenIssuer) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || !claims.Role.Valid() || claims.SubjectID() == 0 {
		return nil, ErrInvalidToken
	}

	if i.revoked != nil && claims.ID != "" {
		revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// Revoke registers the token id until the token would have expired anyway.
func (i *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.revoked == nil {
		return errors.New("token revocation is not configured")
	}
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	return i.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}
