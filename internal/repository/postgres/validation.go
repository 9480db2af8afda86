package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/blastcampaign/internal/domain"
)

// ValidationStore implements validation.L3Store against the
// phone_validation_cache table (§6), the durable tier behind the
// PhoneValidationCache's in-process L1 and optional Redis L2.
type ValidationStore struct{ db *sql.DB }

// NewValidationStore creates a Postgres-backed L3Store.
func NewValidationStore(db *sql.DB) *ValidationStore { return &ValidationStore{db: db} }

func (s *ValidationStore) Get(ctx context.Context, address string) (*domain.ValidationCacheEntry, bool, error) {
	e := &domain.ValidationCacheEntry{}
	err := s.db.QueryRowContext(ctx, `
		SELECT address, exists, COALESCE(provider_handle, ''), validated_at
		FROM phone_validation_cache
		WHERE address = $1
	`, address).Scan(&e.Address, &e.Exists, &e.ProviderHandle, &e.ValidatedAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get validation entry: %w", err)
	}
	return e, true, nil
}

func (s *ValidationStore) Put(ctx context.Context, entry domain.ValidationCacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO phone_validation_cache (address, exists, provider_handle, validated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO UPDATE SET
			exists          = EXCLUDED.exists,
			provider_handle = EXCLUDED.provider_handle,
			validated_at    = EXCLUDED.validated_at
	`, entry.Address, entry.Exists, nullString(entry.ProviderHandle), entry.ValidatedAt)
	if err != nil {
		return fmt.Errorf("put validation entry: %w", err)
	}
	return nil
}
