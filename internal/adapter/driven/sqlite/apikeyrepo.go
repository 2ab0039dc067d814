package sqlite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// keyBytes is the entropy of a generated API key; the stored value is its hex form.
const keyBytes = 32

// Compile-time interface satisfaction check.
var _ driven.KeyAdmin = (*APIKeyRepo)(nil)

// APIKeyRepo is the SQLite implementation of the KeyStore and KeyAdmin ports.
type APIKeyRepo struct {
	db *DB
}

// NewAPIKeyRepo creates a new APIKeyRepo.
func NewAPIKeyRepo(db *DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

// Validate reports whether value matches an issued key. Empty values never match.
func (r *APIKeyRepo) Validate(ctx context.Context, value string) (bool, error) {
	if value == "" {
		return false, nil
	}

	const query = `SELECT EXISTS(SELECT 1 FROM api_keys WHERE value = ?)`
	var exists bool
	if err := r.db.Reader.QueryRowContext(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("validate api key: %w", err)
	}
	return exists, nil
}

// GetByValue returns the key record for value, or driven.ErrKeyNotFound.
func (r *APIKeyRepo) GetByValue(ctx context.Context, value string) (*model.APIKey, error) {
	const query = `SELECT id, name, value, created_at FROM api_keys WHERE value = ?`
	key, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, driven.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return &key, nil
}

// Create issues a new random key under name.
func (r *APIKeyRepo) Create(ctx context.Context, name string) (model.APIKey, error) {
	value, err := generateKey()
	if err != nil {
		return model.APIKey{}, err
	}

	const query = `INSERT INTO api_keys (name, value) VALUES (?, ?) RETURNING id, name, value, created_at`
	key, err := scanAPIKey(r.db.Writer.QueryRowContext(ctx, query, name, value))
	if err != nil {
		return model.APIKey{}, fmt.Errorf("create api key %q: %w", name, err)
	}
	return key, nil
}

// List returns all keys ordered by id.
func (r *APIKeyRepo) List(ctx context.Context) ([]model.APIKey, error) {
	const query = `SELECT id, name, value, created_at FROM api_keys ORDER BY id`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := []model.APIKey{}
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// Rename changes the display name of key id.
func (r *APIKeyRepo) Rename(ctx context.Context, id int64, name string) error {
	const query = `UPDATE api_keys SET name = ? WHERE id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, name, id)
	if err != nil {
		return fmt.Errorf("rename api key %d: %w", id, err)
	}
	return requireAffected(res, id)
}

// Delete revokes key id.
func (r *APIKeyRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM api_keys WHERE id = ?`
	res, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete api key %d: %w", id, err)
	}
	return requireAffected(res, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (model.APIKey, error) {
	var key model.APIKey
	var createdAt string
	if err := row.Scan(&key.ID, &key.Name, &key.Value, &createdAt); err != nil {
		return model.APIKey{}, err
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return model.APIKey{}, fmt.Errorf("parse created_at: %w", err)
	}
	key.CreatedAt = t

	return key, nil
}

func requireAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("api key %d: %w", id, driven.ErrKeyNotFound)
	}
	return nil
}

func generateKey() (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
