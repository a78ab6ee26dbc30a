// Package sqlite implements storage.Store on a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mistakeknot/recall/internal/core"
	"github.com/mistakeknot/recall/internal/storage"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// A single connection keeps the in-memory database alive across calls.
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// --- Users ---

func (s *Store) CreateUser(u core.User) (core.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT INTO users (id, email, hashed_password, role, is_active, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.ID, u.Email, u.HashedPassword, string(u.Role), boolToInt(u.IsActive), ts(u.CreatedAt), ts(u.UpdatedAt),
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, storage.ErrConflict
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(id string) (core.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, hashed_password, role, is_active, created_at, updated_at FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(email string) (core.User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, email, hashed_password, role, is_active, created_at, updated_at FROM users WHERE email = ?`, email))
}

func (s *Store) ListUsers(offset, limit int) ([]core.User, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}
	rows, err := s.db.Query(
		`SELECT id, email, hashed_password, role, is_active, created_at, updated_at
		 FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`, limitOrAll(limit), offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []core.User{}
	for rows.Next() {
		u, err := s.scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateUser(u core.User) (core.User, error) {
	existing, err := s.GetUser(u.ID)
	if err != nil {
		return core.User{}, err
	}
	if u.Email == "" {
		u.Email = existing.Email
	}
	if u.HashedPassword == "" {
		u.HashedPassword = existing.HashedPassword
	}
	if u.Role == "" {
		u.Role = existing.Role
	}
	u.CreatedAt = existing.CreatedAt
	u.UpdatedAt = time.Now().UTC()
	err = withBusyRetry(func() error {
		_, err := s.db.Exec(
			`UPDATE users SET email = ?, hashed_password = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
			u.Email, u.HashedPassword, string(u.Role), boolToInt(u.IsActive), ts(u.UpdatedAt), u.ID,
		)
		return err
	})
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, storage.ErrConflict
		}
		return core.User{}, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (s *Store) DeleteUser(id string) error {
	return s.deleteByID(`DELETE FROM users WHERE id = ?`, id)
}

func (s *Store) scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var role, createdAt, updatedAt string
	var active int
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &role, &active, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, storage.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	u.IsActive = active != 0
	u.CreatedAt = parseTS(createdAt)
	u.UpdatedAt = parseTS(updatedAt)
	return u, nil
}

func (s *Store) scanUserRows(rows *sql.Rows) (core.User, error) {
	var u core.User
	var role, createdAt, updatedAt string
	var active int
	if err := rows.Scan(&u.ID, &u.Email, &u.HashedPassword, &role, &active, &createdAt, &updatedAt); err != nil {
		return core.User{}, fmt.Errorf("scan user: %w", err)
	}
	u.Role = core.Role(role)
	u.IsActive = active != 0
	u.CreatedAt = parseTS(createdAt)
	u.UpdatedAt = parseTS(updatedAt)
	return u, nil
}

// --- Refresh tokens ---

func (s *Store) SaveRefreshToken(t core.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	err := withBusyRetry(func() error {
		_, err := s.db.Exec(
			`INSERT OR REPLACE INTO refresh_tokens (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
			t.Token, t.UserID, ts(t.ExpiresAt), ts(t.CreatedAt),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

func (s *Store) GetRefreshToken(token string) (core.RefreshToken, error) {
	var t core.RefreshToken
	var expiresAt, createdAt string
	err := s.db.QueryRow(
		`SELECT token, user_id, expires_at, created_at FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&t.Token, &t.UserID, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RefreshToken{}, storage.ErrNotFound
	}
	if err != nil {
		return core.RefreshToken{}, fmt.Errorf("get refresh token: %w", err)
	}
	t.ExpiresAt = parseTS(expiresAt)
	t.CreatedAt = parseTS(createdAt)
	return t, nil
}

func (s *Store) DeleteRefreshToken(token string) error {
	return withBusyRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE token = ?`, token)
		return err
	})
}

func (s *Store) DeleteUserRefreshTokens(userID string) error {
	return withBusyRetry(func() error {
		_, err := s.db.Exec(`DELETE FROM refresh_tokens WHERE user_id = ?`, userID)
		return err
	})
}

func (s *Store) PurgeExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at < ?`, ts(before))
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

// --- shared helpers ---

func (s *Store) deleteByID(query, id string) error {
	var affected int64
	err := withBusyRetry(func() error {
		res, err := s.db.Exec(query, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTS(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// SQLite has no upper-bound-free LIMIT with OFFSET; -1 means unlimited.
func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
