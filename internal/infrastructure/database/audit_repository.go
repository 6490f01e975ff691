package database

import (
	"context"
	"fmt"

	"github.com/davidleathers/qaudit-backend/internal/domain/audit"
)

// AuditRepository appends hash-chained audit entries. Appends serialize on
// an advisory lock so sequence numbers stay gapless.
type AuditRepository struct {
	db *Pool
}

func NewAuditRepository(db *Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditChainLock = "audit_entries_chain"

// Record seals entry after the current chain head and inserts it in the
// caller's transaction, or in its own when there is none.
func (r *AuditRepository) Record(ctx context.Context, entry *audit.Entry) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		q := r.db.conn(ctx)
		if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, auditChainLock); err != nil {
			return mapError(err, nil, "lock audit chain")
		}

		var prev *audit.Entry
		head := audit.Entry{}
		err := q.QueryRow(ctx,
			`SELECT sequence, hash FROM audit_entries ORDER BY sequence DESC LIMIT 1`).
			Scan(&head.Sequence, &head.Hash)
		switch {
		case err == nil:
			prev = &head
		case isNoRows(err):
		default:
			return mapError(err, nil, "read audit chain head")
		}

		if err := entry.Seal(prev); err != nil {
			return err
		}
		details, err := encodeJSONText(entry.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		_, err = q.Exec(ctx, `
			INSERT INTO audit_entries (sequence, id, action, entity_type, entity_id, actor_id,
				details, created_at, previous_hash, hash)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			entry.Sequence, entry.ID, string(entry.Action), entry.EntityType, entry.EntityID,
			entry.ActorID, details, entry.CreatedAt, entry.PreviousHash, entry.Hash)
		return mapError(err, nil, "insert audit entry")
	})
}

// AuditEntries returns the chain in sequence order
func (r *AuditRepository) AuditEntries(ctx context.Context) ([]*audit.Entry, error) {
	rows, err := r.db.conn(ctx).Query(ctx, `
		SELECT sequence, id, action, entity_type, entity_id, actor_id, details, created_at,
			previous_hash, hash
		FROM audit_entries ORDER BY sequence`)
	if err != nil {
		return nil, mapError(err, nil, "list audit entries")
	}
	defer rows.Close()

	var out []*audit.Entry
	for rows.Next() {
		var e audit.Entry
		var action string
		var details []byte
		if err := rows.Scan(&e.Sequence, &e.ID, &action, &e.EntityType, &e.EntityID, &e.ActorID,
			&details, &e.CreatedAt, &e.PreviousHash, &e.Hash); err != nil {
			return nil, mapError(err, nil, "scan audit entry")
		}
		e.Action = audit.Action(action)
		e.CreatedAt = e.CreatedAt.UTC()
		if err := decodeJSONNumbers(details, &e.Details); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		out = append(out, &e)
	}
	return out, mapError(rows.Err(), nil, "list audit entries")
}
