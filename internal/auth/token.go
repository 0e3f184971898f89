package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/priyav/docshare/internal/models"
)

// Token usage claims. A session token and a download grant are signed
// with the same secret but live in distinct namespaces: a verifier for
// one kind always rejects the other.
const (
	useSession  = "session"
	useDownload = "download"
)

// SessionClaims is the payload of a session token: who logged in and
// with which role.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
	Use  string      `json:"use"`
}

// GrantClaims is the payload of a download grant: exactly one file,
// minted for one role, optionally consumable exactly once. The jti (ID)
// keys the consumed-set when single use is enforced.
type GrantClaims struct {
	jwt.RegisteredClaims
	FileID    string      `json:"fid"`
	Role      models.Role `json:"role"`
	SingleUse bool        `json:"one,omitempty"`
	Use       string      `json:"use"`
}

// Tokens mints and verifies both token kinds. The secret is read-only
// after construction, so Tokens is safe for concurrent use.
type Tokens struct {
	secret     []byte
	sessionTTL time.Duration
	grantTTL   time.Duration
	singleUse  bool
}

func NewTokens(secret []byte, sessionTTL, grantTTL time.Duration, singleUse bool) *Tokens {
	return &Tokens{
		secret:     secret,
		sessionTTL: sessionTTL,
		grantTTL:   grantTTL,
		singleUse:  singleUse,
	}
}

// NewSessionToken issues a signed session token for username with the
// given role. Returns the compact token and its expiry.
func (t *Tokens) NewSessionToken(username string, role models.Role) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(t.sessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: role,
		Use:  useSession,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// ParseSessionToken verifies signature, expiry and namespace of a
// session token and returns its claims.
func (t *Tokens) ParseSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	err := t.parse(tokenString, claims)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	}

	if claims.Use != useSession || claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// NewDownloadGrant issues a signed grant scoped to fileID. The grant's
// TTL is independent of (and much shorter than) the session TTL.
func (t *Tokens) NewDownloadGrant(fileID string, role models.Role) (string, *GrantClaims, error) {
	now := time.Now()
	claims := &GrantClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.grantTTL)),
		},
		FileID:    fileID,
		Role:      role,
		SingleUse: t.singleUse,
		Use:       useDownload,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// ParseDownloadGrant verifies signature, expiry and namespace of a
// download grant. A session token presented here fails with
// ErrGrantInvalid, never with a role error.
func (t *Tokens) ParseDownloadGrant(tokenString string) (*GrantClaims, error) {
	claims := &GrantClaims{}
	err := t.parse(tokenString, claims)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrGrantExpired
	case err != nil:
		return nil, ErrGrantInvalid
	}

	if claims.Use != useDownload || claims.FileID == "" || claims.ID == "" {
		return nil, ErrGrantInvalid
	}
	return claims, nil
}

func (t *Tokens) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenUnverifiable
	}
	return nil
}
