package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/vectorvault/internal/quota"
)

// QuotaStore is the database-backed quota gate. The stored procedure locks
// the organization's usage row for the month, compares against the active
// plan and increments only on admit, all inside one statement. Admit and
// Release are the only writers of the counters.
type QuotaStore struct {
	pool *pgxpool.Pool
}

func NewQuotaStore(pool *pgxpool.Pool) *QuotaStore {
	return &QuotaStore{pool: pool}
}

var _ quota.Gate = (*QuotaStore)(nil)

func (s *QuotaStore) Admit(ctx context.Context, orgID uuid.UUID, metric quota.Metric, amount int) (bool, error) {
	if err := quota.Check(metric, amount); err != nil {
		return false, err
	}

	var admitted bool
	err := s.pool.QueryRow(ctx,
		`SELECT check_usage_limit_and_increment(org_id => $1, metric => $2, amount => $3)`,
		orgID, string(metric), amount,
	).Scan(&admitted)
	if err != nil {
		return false, fmt.Errorf("check usage limit: %w", err)
	}
	return admitted, nil
}

// releaseColumns maps a metric to its usage_metrics column. Never
// interpolate anything else into the release statement.
var releaseColumns = map[quota.Metric]string{
	quota.MetricRecords: "record_count",
	quota.MetricQueries: "query_count",
}

// Release lowers this month's counter, clamped at zero.
func (s *QuotaStore) Release(ctx context.Context, orgID uuid.UUID, metric quota.Metric, amount int) error {
	if err := quota.Check(metric, amount); err != nil {
		return err
	}

	col := releaseColumns[metric]
	_, err := s.pool.Exec(ctx, `
		UPDATE usage_metrics
		SET `+col+` = GREATEST(0, `+col+` - $2)
		WHERE organization_id = $1 AND month = date_trunc('month', now())::date`,
		orgID, amount,
	)
	if err != nil {
		return fmt.Errorf("release usage: %w", err)
	}
	return nil
}
