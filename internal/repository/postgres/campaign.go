// Package postgres implements runner.Repository and validation.L3Store
// against the schema in migrations/ (§6 persisted state). Grounded on the
// teacher's internal/repository/postgres/campaign.go CampaignRepo
// (ErrNoRows -> domain sentinel mapping, ExecContext for writes; the
// affected-row count is not checked).
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ignite/blastcampaign/internal/domain"
)

// CampaignRepo implements runner.Repository against the campaigns table.
// Config is stored as a single JSONB column rather than one column per
// field: it is an opaque, immutable-after-creation blob the runner never
// queries by field, so there is nothing for a relational column to buy
// here, unlike Status/Sent/Failed which the control plane filters and
// sorts by directly.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func (r *CampaignRepo) Get(ctx context.Context, campaignID string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var cfgJSON []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, channel_id, name, config,
		       status, total, sent, failed, skipped, current_index,
		       created_at, started_at, paused_at, completed_at,
		       COALESCE(pause_reason, ''), resume_at, COALESCE(last_error, '')
		FROM campaigns
		WHERE id = $1
	`, campaignID).Scan(
		&c.CampaignID, &c.TenantID, &c.ChannelID, &c.Name, &cfgJSON,
		&c.Status, &c.Total, &c.Sent, &c.Failed, &c.Skipped, &c.CurrentIndex,
		&c.CreatedAt, &c.StartedAt, &c.PausedAt, &c.CompletedAt,
		&c.PauseReason, &c.ResumeAt, &c.LastError,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
		return nil, fmt.Errorf("decode campaign config: %w", err)
	}
	return c, nil
}

// Save upserts the full Campaign row, matching the runner's
// write-everything-on-every-mutation pattern (§4.7) rather than the
// teacher's column-by-column UpdateFields diff, since CampaignRunner
// always has the complete struct in hand already.
func (r *CampaignRepo) Save(ctx context.Context, c *domain.Campaign) error {
	cfgJSON, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("encode campaign config: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, tenant_id, channel_id, name, config, status, total, sent, failed,
			 skipped, current_index, created_at, started_at, paused_at, completed_at,
			 pause_reason, resume_at, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			channel_id     = EXCLUDED.channel_id,
			name           = EXCLUDED.name,
			config         = EXCLUDED.config,
			status         = EXCLUDED.status,
			total          = EXCLUDED.total,
			sent           = EXCLUDED.sent,
			failed         = EXCLUDED.failed,
			skipped        = EXCLUDED.skipped,
			current_index  = EXCLUDED.current_index,
			started_at     = EXCLUDED.started_at,
			paused_at      = EXCLUDED.paused_at,
			completed_at   = EXCLUDED.completed_at,
			pause_reason   = EXCLUDED.pause_reason,
			resume_at      = EXCLUDED.resume_at,
			last_error     = EXCLUDED.last_error
	`, c.CampaignID, c.TenantID, c.ChannelID, c.Name, cfgJSON, c.Status,
		c.Total, c.Sent, c.Failed, c.Skipped, c.CurrentIndex,
		c.CreatedAt, c.StartedAt, c.PausedAt, c.CompletedAt,
		nullString(c.PauseReason), c.ResumeAt, nullString(c.LastError))
	if err != nil {
		return fmt.Errorf("save campaign: %w", err)
	}
	return nil
}

// List returns every campaign for tenantID, newest first, for the control
// plane's list endpoint.
func (r *CampaignRepo) List(ctx context.Context, tenantID string) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, channel_id, name, config, status, total, sent,
		       failed, skipped, current_index, created_at
		FROM campaigns
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var cfgJSON []byte
		if err := rows.Scan(&c.CampaignID, &c.TenantID, &c.ChannelID, &c.Name, &cfgJSON,
			&c.Status, &c.Total, &c.Sent, &c.Failed, &c.Skipped, &c.CurrentIndex, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
			return nil, fmt.Errorf("decode campaign config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListRunning returns every campaign left in RUNNING status across all
// tenants, used by cmd/campaignworker at startup to rehydrate runners for
// campaigns orphaned by a crash or deploy (§4.7 restart semantics).
func (r *CampaignRepo) ListRunning(ctx context.Context) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, tenant_id, channel_id, name, config,
		       status, total, sent, failed, skipped, current_index,
		       created_at, started_at, paused_at, completed_at,
		       COALESCE(pause_reason, ''), resume_at, COALESCE(last_error, '')
		FROM campaigns
		WHERE status = $1
	`, domain.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		var cfgJSON []byte
		if err := rows.Scan(&c.CampaignID, &c.TenantID, &c.ChannelID, &c.Name, &cfgJSON,
			&c.Status, &c.Total, &c.Sent, &c.Failed, &c.Skipped, &c.CurrentIndex,
			&c.CreatedAt, &c.StartedAt, &c.PausedAt, &c.CompletedAt,
			&c.PauseReason, &c.ResumeAt, &c.LastError); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
			return nil, fmt.Errorf("decode campaign config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
