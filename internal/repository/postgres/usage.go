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

type UsageStore struct {
	pool *pgxpool.Pool
}

func NewUsageStore(pool *pgxpool.Pool) *UsageStore {
	return &UsageStore{pool: pool}
}

// Current returns this month's counters. An organization with no activity
// this month gets a zero row rather than nil.
func (s *UsageStore) Current(ctx context.Context, orgID uuid.UUID) (*models.UsageMetric, error) {
	query := `
		SELECT organization_id, month, record_count, query_count
		FROM usage_metrics
		WHERE organization_id = $1 AND month = date_trunc('month', now())::date`

	var m models.UsageMetric
	err := s.pool.QueryRow(ctx, query, orgID).Scan(&m.OrganizationID, &m.Month, &m.RecordCount, &m.QueryCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			now := time.Now().UTC()
			return &models.UsageMetric{
				OrganizationID: orgID,
				Month:          time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
			}, nil
		}
		return nil, fmt.Errorf("get current usage: %w", err)
	}
	return &m, nil
}

func (s *UsageStore) History(ctx context.Context, orgID uuid.UUID, months int) ([]models.UsageMetric, error) {
	query := `
		SELECT organization_id, month, record_count, query_count
		FROM usage_metrics
		WHERE organization_id = $1
		ORDER BY month DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, orgID, months)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	history := make([]models.UsageMetric, 0)
	for rows.Next() {
		var m models.UsageMetric
		if err := rows.Scan(&m.OrganizationID, &m.Month, &m.RecordCount, &m.QueryCount); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		history = append(history, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return history, nil
}

func (s *UsageStore) PlanLimits(ctx context.Context, orgID uuid.UUID) (*models.PlanLimits, error) {
	query := `
		SELECT p.id, p.name, s.status, p.max_records, p.max_queries_per_month
		FROM subscriptions s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.organization_id = $1 AND s.status = 'active'
		LIMIT 1`

	var l models.PlanLimits
	err := s.pool.QueryRow(ctx, query, orgID).Scan(
		&l.PlanID,
		&l.PlanName,
		&l.Status,
		&l.MaxRecords,
		&l.MaxQueriesPerMonth,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get plan limits: %w", err)
	}
	return &l, nil
}
