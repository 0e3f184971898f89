package auth

import (
	"fmt"

	"github.com/priyav/docshare/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// Store resolves a username to a provisioned identity. The service only
// provisions two users (one ops, one client), but nothing here depends
// on that; a database-backed store can replace StaticStore without
// touching the authenticator or the guard.
type Store interface {
	FindByUsername(username string) (*models.Identity, bool)
}

// StaticStore is an immutable in-memory credential table built at startup.
type StaticStore struct {
	users map[string]models.Identity
}

// NewStaticStore builds a store from the given identities. Later
// duplicates of a username win, matching config precedence.
func NewStaticStore(identities ...models.Identity) *StaticStore {
	users := make(map[string]models.Identity, len(identities))
	for _, id := range identities {
		users[id.Username] = id
	}
	return &StaticStore{users: users}
}

// FindByUsername returns the identity for username, if provisioned.
func (s *StaticStore) FindByUsername(username string) (*models.Identity, bool) {
	id, ok := s.users[username]
	if !ok {
		return nil, false
	}
	return &id, true
}

// ProvisionIdentity builds an identity from config material. A non-empty
// passwordHash wins; otherwise the plaintext password is hashed here so
// no plaintext survives startup.
func ProvisionIdentity(username, password, passwordHash string, role models.Role) (models.Identity, error) {
	if passwordHash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return models.Identity{}, fmt.Errorf("failed to hash password for %s: %w", username, err)
		}
		passwordHash = string(hashed)
	}
	return models.Identity{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
	}, nil
}
