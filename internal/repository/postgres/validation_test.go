package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/domain"
)

func TestValidationStoreGetHit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"address", "exists", "provider_handle", "validated_at"}).
		AddRow("+15550001", true, "handle-1", time.Now())
	mock.ExpectQuery("SELECT (.+) FROM phone_validation_cache").WithArgs("+15550001").WillReturnRows(rows)

	store := NewValidationStore(db)
	entry, ok, err := store.Get(context.Background(), "+15550001")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, entry.Exists)
	assert.Equal(t, "handle-1", entry.ProviderHandle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestValidationStoreGetMiss(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM phone_validation_cache").WithArgs("+15550002").WillReturnError(sql.ErrNoRows)

	store := NewValidationStore(db)
	_, ok, err := store.Get(context.Background(), "+15550002")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestValidationStorePutUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO phone_validation_cache").WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewValidationStore(db)
	err = store.Put(context.Background(), domain.ValidationCacheEntry{
		Address: "+15550003", Exists: true, ProviderHandle: "handle-3", ValidatedAt: time.Now(),
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
