package auth

import (
	"time"

	"github.com/priyav/docshare/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// dummyHash is compared against when the username is unknown, so a
// probe for a nonexistent user costs the same bcrypt work as a wrong
// password for a real one.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// Authenticator verifies credentials against a Store and issues session
// tokens. It keeps no per-session state; tokens are self-contained.
type Authenticator struct {
	store  Store
	tokens *Tokens
}

func NewAuthenticator(store Store, tokens *Tokens) *Authenticator {
	return &Authenticator{store: store, tokens: tokens}
}

// Login checks username/password and returns a signed session token and
// its expiry. Unknown user and wrong password are indistinguishable to
// the caller: both return ErrInvalidCredentials.
func (a *Authenticator) Login(username, password string) (string, models.Role, time.Time, error) {
	identity, ok := a.store.FindByUsername(username)
	if !ok {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", "", time.Time{}, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return "", "", time.Time{}, ErrInvalidCredentials
	}

	token, expires, err := a.tokens.NewSessionToken(identity.Username, identity.Role)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return token, identity.Role, expires, nil
}

// Authorize verifies a session token and checks its role against
// required. A genuine token with the wrong role fails with
// ErrForbidden, distinct from invalid or expired.
func (a *Authenticator) Authorize(tokenString string, required models.Role) (*models.Identity, error) {
	claims, err := a.tokens.ParseSessionToken(tokenString)
	if err != nil {
		return nil, err
	}

	identity, ok := a.store.FindByUsername(claims.Subject)
	if !ok || identity.Role != claims.Role {
		return nil, ErrTokenInvalid
	}

	if required != "" && identity.Role != required {
		return nil, ErrForbidden
	}
	return identity, nil
}
