package analytics

import (
	"context"
	"fmt"

	"github.com/snograph/snoquery/pkg/postgres"
	"github.com/snograph/snoquery/pkg/resilience"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS query_audit (
	id          BIGSERIAL PRIMARY KEY,
	request_id  TEXT,
	operation   TEXT NOT NULL,
	constraint_expression TEXT,
	term        TEXT,
	result_offset INT NOT NULL,
	result_limit  INT NOT NULL,
	total       INT NOT NULL,
	duration_ms BIGINT NOT NULL,
	outcome     TEXT NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_query_audit_executed_at ON query_audit (executed_at);
CREATE INDEX IF NOT EXISTS idx_query_audit_outcome ON query_audit (outcome);
`

// AuditStore persists query events to Postgres.
type AuditStore struct {
	client *postgres.Client
}

// NewAuditStore creates the audit table if needed and returns the store.
func NewAuditStore(ctx context.Context, client *postgres.Client) (*AuditStore, error) {
	if _, err := client.DB.ExecContext(ctx, auditSchema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &AuditStore{client: client}, nil
}

// Insert writes one query event, retrying transient database failures.
func (s *AuditStore) Insert(ctx context.Context, event QueryEvent) error {
	return resilience.Retry(ctx, "audit-insert", resilience.RetryConfig{}, func() error {
		_, err := s.client.DB.ExecContext(ctx,
			`INSERT INTO query_audit
				(request_id, operation, constraint_expression, term,
				 result_offset, result_limit, total, duration_ms, outcome, executed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			event.RequestID, event.Operation, event.Constraint, event.Term,
			event.Offset, event.Limit, event.Total, event.DurationMS,
			event.Outcome, event.Timestamp,
		)
		return err
	})
}
