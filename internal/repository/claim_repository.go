package repository

import (
	"context"
	"strings"
)

// claim owner kinds stored in slot_claims.owner_type.
const (
	ownerReservation = "reservation"
	ownerHold        = "hold"
)

// ClaimRepo maintains slot_claims, the table backing the (venue, table,
// date, time) uniqueness guard, and slot_locks, the rows used as
// transaction-scoped advisory locks.
type ClaimRepo struct{}

// NewClaimRepo returns a ClaimRepo.  It is stateless; every call runs on the
// caller's transaction.
func NewClaimRepo() *ClaimRepo { return &ClaimRepo{} }

// Lock takes an exclusive row lock on key.  The upsert blocks while another
// transaction holds the same row and the lock is released on commit or
// rollback, which makes the row behave like a named advisory lock.
func (r *ClaimRepo) Lock(ctx context.Context, q querier, key string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO slot_locks (lock_key, locked_at) VALUES (?, UTC_TIMESTAMP(6))
		 ON DUPLICATE KEY UPDATE locked_at = VALUES(locked_at)`, key)
	return err
}

// Claim inserts one slot_claims row per table (or the table-less row 0).
// A unique-key violation is reported as ErrDuplicateSlot.
func (r *ClaimRepo) Claim(ctx context.Context, q querier, venueID uint64, tableIDs []uint64, date, clock, ownerType string, ownerID uint64) error {
	ids := ClaimTableIDs(tableIDs)
	var sb strings.Builder
	sb.WriteString(`INSERT INTO slot_claims (venue_id, table_id, local_date, local_time, owner_type, owner_id) VALUES `)
	args := make([]any, 0, len(ids)*6)
	for i, tid := range ids {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, venueID, tid, date, clock, ownerType, ownerID)
	}
	if _, err := q.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateSlot
		}
		return err
	}
	return nil
}

// Release deletes every claim held by the owner.
func (r *ClaimRepo) Release(ctx context.Context, q querier, ownerType string, ownerID uint64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM slot_claims WHERE owner_type = ? AND owner_id = ?`, ownerType, ownerID)
	return err
}
