package sqlite

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/ericfisherdev/repobrief/internal/domain/model"
	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port.
// Values are sealed with AES-256-GCM; "service/key" is bound as additional data
// so a ciphertext copied to another row fails to open.
type CredentialRepo struct {
	db   *DB
	aead cipher.AEAD // nil when no secret key is configured
}

// NewCredentialRepo creates a CredentialRepo. secret must be 32 bytes, or nil
// to disable credential storage (every operation returns driven.ErrEncryptionKeyNotSet).
func NewCredentialRepo(db *DB, secret []byte) (*CredentialRepo, error) {
	repo := &CredentialRepo{db: db}
	if secret == nil {
		return repo, nil
	}

	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}
	repo.aead = aead

	return repo, nil
}

// Set stores or replaces the credential for service/key.
func (r *CredentialRepo) Set(ctx context.Context, service, key, plaintext string) error {
	sealed, err := r.seal(service, key, plaintext)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO credentials (service, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (service, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key, sealed); err != nil {
		return fmt.Errorf("set credential %s/%s: %w", service, key, err)
	}
	return nil
}

// Get returns the plaintext for service/key, or ("", nil) if none is stored.
func (r *CredentialRepo) Get(ctx context.Context, service, key string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT value FROM credentials WHERE service = ? AND key = ?`
	var sealed string
	err := r.db.Reader.QueryRowContext(ctx, query, service, key).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %s/%s: %w", service, key, err)
	}

	plaintext, err := r.open(service, key, sealed)
	if err != nil {
		return "", fmt.Errorf("decrypt credential %s/%s: %w", service, key, err)
	}
	return plaintext, nil
}

// List returns all stored credentials with decrypted values, ordered by service and key.
func (r *CredentialRepo) List(ctx context.Context) ([]model.Credential, error) {
	if r.aead == nil {
		return nil, driven.ErrEncryptionKeyNotSet
	}

	const query = `SELECT id, service, key, value, updated_at FROM credentials ORDER BY service, key`
	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	creds := []model.Credential{}
	for rows.Next() {
		var cred model.Credential
		var sealed, updatedAt string
		if err := rows.Scan(&cred.ID, &cred.Service, &cred.Key, &sealed, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}

		cred.Value, err = r.open(cred.Service, cred.Key, sealed)
		if err != nil {
			return nil, fmt.Errorf("decrypt credential %s/%s: %w", cred.Service, cred.Key, err)
		}

		cred.UpdatedAt, err = parseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parse updated_at for credential %s/%s: %w", cred.Service, cred.Key, err)
		}

		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	return creds, nil
}

// Delete removes the credential for service/key. Deleting a missing credential is not an error.
func (r *CredentialRepo) Delete(ctx context.Context, service, key string) error {
	if r.aead == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	const query = `DELETE FROM credentials WHERE service = ? AND key = ?`
	if _, err := r.db.Writer.ExecContext(ctx, query, service, key); err != nil {
		return fmt.Errorf("delete credential %s/%s: %w", service, key, err)
	}
	return nil
}

// seal returns base64(nonce || ciphertext || tag).
func (r *CredentialRepo) seal(service, key, plaintext string) (string, error) {
	if r.aead == nil {
		return "", driven.ErrEncryptionKeyNotSet
	}

	nonce := make([]byte, r.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("rand nonce: %w", err)
	}

	sealed := r.aead.Seal(nonce, nonce, []byte(plaintext), additionalData(service, key))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (r *CredentialRepo) open(service, key, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}

	nonceSize := r.aead.NonceSize()
	if len(data) < nonceSize {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := r.aead.Open(nil, nonce, ciphertext, additionalData(service, key))
	if err != nil {
		return "", fmt.Errorf("gcm open: %w", err)
	}

	return string(plaintext), nil
}

func additionalData(service, key string) []byte {
	return []byte(service + "/" + key)
}
