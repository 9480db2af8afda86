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

func TestCampaignRepoGetScansRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{
		"id", "tenant_id", "channel_id", "name", "config",
		"status", "total", "sent", "failed", "skipped", "current_index",
		"created_at", "started_at", "paused_at", "completed_at",
		"pause_reason", "resume_at", "last_error",
	}).AddRow(
		"camp-1", "tenant-1", "chan-1", "blast", []byte(`{"accountAge":"ESTABLISHED"}`),
		domain.StatusRunning, 10, 3, 1, 0, 4,
		time.Now(), nil, nil, nil,
		"", nil, "",
	)
	mock.ExpectQuery("SELECT (.+) FROM campaigns").WithArgs("camp-1").WillReturnRows(rows)

	repo := NewCampaignRepo(db)
	c, err := repo.Get(context.Background(), "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", c.CampaignID)
	assert.Equal(t, domain.StatusRunning, c.Status)
	assert.Equal(t, domain.AgeEstablished, c.Config.AccountAge)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCampaignRepoGetNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM campaigns").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	repo := NewCampaignRepo(db)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCampaignRepoSaveUpserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO campaigns").WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewCampaignRepo(db)
	c := &domain.Campaign{
		CampaignID: "camp-2", TenantID: "tenant-1", ChannelID: "chan-1",
		Status: domain.StatusScheduled, Total: 5, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Save(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}
