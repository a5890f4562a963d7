package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/vectorvault/internal/models"
)

type APIKeyStore struct {
	pool *pgxpool.Pool
}

func NewAPIKeyStore(pool *pgxpool.Pool) *APIKeyStore {
	return &APIKeyStore{pool: pool}
}

const apiKeyColumns = `id, organization_id, name, key_prefix, key_hash,
	COALESCE(permissions, '{}'), expires_at, last_used_at, created_by, created_at`

func scanAPIKey(row pgx.Row, op string) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID,
		&k.OrganizationID,
		&k.Name,
		&k.KeyPrefix,
		&k.KeyHash,
		&k.Permissions,
		&k.ExpiresAt,
		&k.LastUsedAt,
		&k.CreatedBy,
		&k.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &k, nil
}

func (s *APIKeyStore) List(ctx context.Context, orgID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE organization_id = $1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]models.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows, "scan api key")
		if err != nil {
			return nil, err
		}
		keys = append(keys, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

func (s *APIKeyStore) GetByID(ctx context.Context, orgID, keyID uuid.UUID) (*models.APIKey, error) {
	return scanAPIKey(s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1 AND organization_id = $2`,
		keyID, orgID), "get api key")
}

// Create stores the key's prefix and hash. The plaintext never reaches the
// database.
func (s *APIKeyStore) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	query := `
		INSERT INTO api_keys
			(organization_id, name, key_prefix, key_hash, permissions, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING ` + apiKeyColumns

	permissions := key.Permissions
	if permissions == nil {
		permissions = []string{}
	}
	return scanAPIKey(s.pool.QueryRow(ctx, query,
		key.OrganizationID,
		key.Name,
		key.KeyPrefix,
		key.KeyHash,
		permissions,
		key.ExpiresAt,
		key.CreatedBy,
	), "insert api key")
}

func (s *APIKeyStore) Delete(ctx context.Context, orgID, keyID uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM api_keys WHERE id = $1 AND organization_id = $2`, keyID, orgID)
	if err != nil {
		return false, fmt.Errorf("delete api key: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *APIKeyStore) GetByPrefix(ctx context.Context, prefix string) (*models.APIKey, error) {
	return scanAPIKey(s.pool.QueryRow(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE key_prefix = $1`, prefix), "get api key by prefix")
}

func (s *APIKeyStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at)
	if err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}
