package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hadlocna/operations/internal/application/port"
	"github.com/hadlocna/operations/internal/domain/entity"
	"github.com/hadlocna/operations/pkg/database"
)

// CredentialRepository implements port.CredentialRepository
type CredentialRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *sql.DB, logger *zap.Logger) port.CredentialRepository {
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

// Get retrieves a credential by key. It returns nil when none is stored.
func (r *CredentialRepository) Get(ctx context.Context, key string) (*entity.Credential, error) {
	query := `
		SELECT key, access_token, refresh_token, token_type, expiry, scopes, updated_at
		FROM credentials
		WHERE key = ?
	`

	var (
		cred   entity.Credential
		expiry sql.NullTime
		scopes string
	)
	err := r.getExecutor(ctx).QueryRowContext(ctx, query, key).Scan(
		&cred.Key,
		&cred.AccessToken,
		&cred.RefreshToken,
		&cred.TokenType,
		&expiry,
		&scopes,
		&cred.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get credential", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	if expiry.Valid {
		cred.Expiry = expiry.Time
	}
	cred.Scopes = strings.Fields(scopes)
	return &cred, nil
}

// Save inserts or replaces the credential stored under cred.Key
func (r *CredentialRepository) Save(ctx context.Context, cred *entity.Credential) error {
	query := `
		INSERT INTO credentials (key, access_token, refresh_token, token_type, expiry, scopes, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expiry = excluded.expiry,
			scopes = excluded.scopes,
			updated_at = excluded.updated_at
	`

	if cred.UpdatedAt.IsZero() {
		cred.UpdatedAt = time.Now().UTC()
	}
	_, err := r.getExecutor(ctx).ExecContext(ctx, query,
		cred.Key,
		cred.AccessToken,
		cred.RefreshToken,
		cred.TokenType,
		nullTime(&cred.Expiry),
		strings.Join(cred.Scopes, " "),
		cred.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to save credential", zap.String("key", cred.Key), zap.Error(err))
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Delete removes the credential stored under key
func (r *CredentialRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.getExecutor(ctx).ExecContext(ctx, "DELETE FROM credentials WHERE key = ?", key); err != nil {
		r.logger.Error("Failed to delete credential", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) getExecutor(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.db)
}

// Verify interface compliance
var _ port.CredentialRepository = (*CredentialRepository)(nil)
