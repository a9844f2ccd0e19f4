package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists audit records in PostgreSQL. It implements both
// Store and Reader.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore creates an audit store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("audit: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

func (s *PGStore) Append(ctx context.Context, record *Record) error {
	if err := record.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO webhook_audit_log
			(id, received_at, email, event, product, raw_payload, status, plan_applied, detail, source_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.ReceivedAt, record.Email, record.Event, record.Product,
		record.RawPayload, record.Status, record.PlanApplied, record.Detail,
		record.SourceIP, record.UserAgent)
	if err != nil {
		return errors.Join(ErrAppendFailed, err)
	}
	return nil
}

func (s *PGStore) List(ctx context.Context, filter Filter) ([]Record, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT id, received_at, email, event, product, raw_payload,
		status, plan_applied, detail, source_ip, user_agent
	FROM webhook_audit_log`)

	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Email != "" {
		conditions = append(conditions, "email = "+arg(filter.Email))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "received_at >= "+arg(filter.Since))
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "received_at < "+arg(filter.Until))
	}

	if len(conditions) > 0 {
		query.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	query.WriteString(" ORDER BY received_at DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT " + arg(filter.Limit))
	}

	rows, err := s.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.ID, &r.ReceivedAt, &r.Email, &r.Event, &r.Product,
			&r.RawPayload, &r.Status, &r.PlanApplied, &r.Detail, &r.SourceIP, &r.UserAgent)
		return r, err
	})
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	return records, nil
}
