package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultJWTIssuer   = "bookshelf-auth"
	defaultJWTAudience = "bookshelf-api"
	defaultSessionTTL  = 24 * time.Hour
	defaultJWTLeeway   = 30 * time.Second

	// MinSecretLen is the shortest HS256 secret accepted.
	MinSecretLen = 32
)

// ErrInvalidToken wraps every reason a bearer token is rejected.
var ErrInvalidToken = errors.New("invalid token")

// JWTOptions configures issuing and claim validation.
type JWTOptions struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Leeway   time.Duration
}

type sessionClaims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTSessionStore issues and validates HS256 tokens. With a revoker set,
// logged-out tokens are rejected until they expire.
type JWTSessionStore struct {
	secret   []byte
	revoker  TokenRevoker
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
	now      func() time.Time
}

// NewJWTSessionStore builds a session store signing with secret.
func NewJWTSessionStore(secret string, revoker TokenRevoker, opts JWTOptions) (*JWTSessionStore, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLen)
	}
	opts = normalizeJWTOptions(opts)
	return &JWTSessionStore{
		secret:   []byte(secret),
		revoker:  revoker,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		leeway:   opts.Leeway,
		now:      time.Now,
	}, nil
}

// NewSession signs a token for userID.
func (s *JWTSessionStore) NewSession(userID string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", errors.New("user id required")
	}
	now := s.now().UTC()
	claims := sessionClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// GetUserIDByToken verifies token and returns its user id. Rejections wrap
// ErrInvalidToken; revoker failures are returned as is.
func (s *JWTSessionStore) GetUserIDByToken(ctx context.Context, token string) (string, error) {
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return "", err
	}
	if s.revoker != nil {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return "", fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return "", fmt.Errorf("%w: revoked", ErrInvalidToken)
		}
	}
	return claims.UserID, nil
}

// DeleteSession revokes token until it expires. Invalid tokens are ignored.
func (s *JWTSessionStore) DeleteSession(ctx context.Context, token string) error {
	if s.revoker == nil {
		return nil
	}
	claims, err := s.parseAndVerify(token)
	if err != nil {
		return nil
	}
	ttl := claims.ExpiresAt.Time.Sub(s.now()) + s.leeway
	return s.revoker.Revoke(ctx, claims.ID, ttl)
}

func (s *JWTSessionStore) parseAndVerify(token string) (sessionClaims, error) {
	var claims sessionClaims
	token = strings.TrimSpace(token)
	if token == "" {
		return claims, fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return claims, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return claims, ErrInvalidToken
	}
	switch {
	case strings.TrimSpace(claims.ID) == "":
		return claims, fmt.Errorf("%w: jti missing", ErrInvalidToken)
	case strings.TrimSpace(claims.UserID) == "" || claims.UserID != claims.Subject:
		return claims, fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return claims, nil
}

func normalizeJWTOptions(opts JWTOptions) JWTOptions {
	opts.Issuer = strings.TrimSpace(opts.Issuer)
	opts.Audience = strings.TrimSpace(opts.Audience)
	if opts.Issuer == "" {
		opts.Issuer = defaultJWTIssuer
	}
	if opts.Audience == "" {
		opts.Audience = defaultJWTAudience
	}
	if opts.TTL <= 0 {
		opts.TTL = defaultSessionTTL
	}
	if opts.Leeway <= 0 {
		opts.Leeway = defaultJWTLeeway
	}
	return opts
}
