package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// CredentialStore looks up known identities by email or phone.
type CredentialStore interface {
	FindByHandle(ctx context.Context, handle string) (Credential, error)
	ExistsByHandle(ctx context.Context, handle string) (bool, error)
}

// Schema creates the identities table read by PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS identities (
    id            TEXT PRIMARY KEY,
    email         TEXT UNIQUE,
    phone         TEXT UNIQUE,
    first_name    TEXT NOT NULL,
    last_name     TEXT NOT NULL,
    role          TEXT NOT NULL CHECK (role IN ('user', 'admin')),
    password_hash BYTEA NOT NULL,
    avatar        TEXT,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore implements CredentialStore using PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed credential store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the identities table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create identities table: %w", err)
	}
	return nil
}

// FindByHandle fetches the identity whose email or phone equals handle.
func (s *PostgresStore) FindByHandle(ctx context.Context, handle string) (Credential, error) {
	row := s.db.QueryRow(ctx, `SELECT id, email, phone, first_name, last_name, role, password_hash, avatar, created_at
        FROM identities WHERE email = $1 OR phone = $1 LIMIT 1`, handle)
	var (
		id                   Identity
		email, phone, avatar *string
		role                 string
		hash                 []byte
		createdAt            time.Time
	)
	if err := row.Scan(&id.ID, &email, &phone, &id.FirstName, &id.LastName, &role, &hash, &avatar, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credential{}, ErrNotFound
		}
		return Credential{}, fmt.Errorf("query identity: %w", err)
	}
	id.Email = deref(email)
	id.Phone = deref(phone)
	id.Avatar = deref(avatar)
	id.Role = Role(role)
	id.CreatedAt = createdAt.UTC()
	return NewCredential(id, hash), nil
}

// ExistsByHandle reports whether any identity uses handle as email or phone.
func (s *PostgresStore) ExistsByHandle(ctx context.Context, handle string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE email = $1 OR phone = $1)`, handle).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query identity existence: %w", err)
	}
	return exists, nil
}

// Seed inserts fixture accounts, leaving rows that already exist untouched.
func (s *PostgresStore) Seed(ctx context.Context, records ...FixtureRecord) (int64, error) {
	var inserted int64
	for _, rec := range records {
		hash, err := bcrypt.GenerateFromPassword([]byte(rec.Password), bcrypt.DefaultCost)
		if err != nil {
			return inserted, fmt.Errorf("hash fixture secret: %w", err)
		}
		id := rec.Identity
		cmd, err := s.db.Exec(ctx, `INSERT INTO identities (id, email, phone, first_name, last_name, role, password_hash, avatar, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) ON CONFLICT DO NOTHING`,
			id.ID, nullable(id.Email), nullable(id.Phone), id.FirstName, id.LastName, string(id.Role), hash, nullable(id.Avatar), id.CreatedAt.UTC())
		if err != nil {
			return inserted, fmt.Errorf("insert identity %s: %w", id.ID, err)
		}
		inserted += cmd.RowsAffected()
	}
	return inserted, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
