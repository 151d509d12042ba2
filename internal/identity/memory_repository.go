package identity

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// FixtureRecord is a plain-text account definition used to build a FixtureStore
// or seed the Postgres table.
type FixtureRecord struct {
	Identity Identity
	Password string
}

// DefaultFixtures returns the storefront's demo accounts.
func DefaultFixtures() []FixtureRecord {
	now := time.Now().UTC()
	return []FixtureRecord{
		{
			Identity: Identity{
				ID:        "1",
				Email:     "admin@gmail.com",
				Phone:     "+1234567890",
				FirstName: "Admin",
				LastName:  "User",
				Role:      RoleAdmin,
				CreatedAt: now,
			},
			Password: "admin123",
		},
		{
			Identity: Identity{
				ID:        "2",
				Email:     "user@example.com",
				Phone:     "+0987654321",
				FirstName: "John",
				LastName:  "Doe",
				Role:      RoleUser,
				CreatedAt: now,
			},
			Password: "password123",
		},
	}
}

// FixtureStore is a read-only in-memory CredentialStore.
type FixtureStore struct {
	records []Credential
}

// NewFixtureStore hashes the given records and returns a store over them. With no
// records it falls back to DefaultFixtures.
func NewFixtureStore(records ...FixtureRecord) (*FixtureStore, error) {
	if len(records) == 0 {
		records = DefaultFixtures()
	}
	creds := make([]Credential, 0, len(records))
	for _, rec := range records {
		hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), bcrypt.MinCost)
		if err != nil {
			return nil, fmt.Errorf("hash fixture %s: %w", rec.Identity.ID, err)
		}
		creds = append(creds, NewCredential(rec.Identity, hash))
	}
	return &FixtureStore{records: creds}, nil
}

// FindByHandle returns the first record whose email or phone equals handle.
func (s *FixtureStore) FindByHandle(_ context.Context, handle string) (Credential, error) {
	for _, c := range s.records {
		if c.identity.Matches(handle) {
			return c, nil
		}
	}
	return Credential{}, ErrNotFound
}

// ExistsByHandle reports whether any record matches handle.
func (s *FixtureStore) ExistsByHandle(_ context.Context, handle string) (bool, error) {
	for _, c := range s.records {
		if c.identity.Matches(handle) {
			return true, nil
		}
	}
	return false, nil
}

// Identities lists the fixture identities without secrets.
func (s *FixtureStore) Identities() []Identity {
	out := make([]Identity, 0, len(s.records))
	for _, c := range s.records {
		out = append(out, c.identity)
	}
	return out
}
