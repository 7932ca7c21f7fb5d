package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

// HoldRepo provides data access to the holds table.  All timestamps are
// written and compared in UTC.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a new HoldRepo bound to the provided database.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

const holdColumns = `id, venue_id, token, status, table_id, local_date, local_time,
	starts_at, duration_min, party_size, expires_at, reservation_id, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHold(s rowScanner) (*model.Hold, error) {
	var (
		h             model.Hold
		tableID       sql.NullInt64
		reservationID sql.NullInt64
	)
	err := s.Scan(&h.ID, &h.VenueID, &h.Token, &h.Status, &tableID, &h.Date, &h.Time,
		&h.StartsAt, &h.DurationMin, &h.PartySize, &h.ExpiresAt, &reservationID, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	if tableID.Valid {
		v := uint64(tableID.Int64)
		h.TableID = &v
	}
	if reservationID.Valid {
		v := uint64(reservationID.Int64)
		h.ReservationID = &v
	}
	return &h, nil
}

// Get loads a hold of the venue.
func (r *HoldRepo) Get(ctx context.Context, q querier, venueID, id uint64) (*model.Hold, error) {
	return r.get(ctx, q, venueID, id, "")
}

// GetForUpdate loads a hold and locks its row for the transaction.
func (r *HoldRepo) GetForUpdate(ctx context.Context, q querier, venueID, id uint64) (*model.Hold, error) {
	return r.get(ctx, q, venueID, id, " FOR UPDATE")
}

func (r *HoldRepo) get(ctx context.Context, q querier, venueID, id uint64, suffix string) (*model.Hold, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+holdColumns+` FROM holds WHERE id = ? AND venue_id = ?`+suffix, id, venueID)
	h, err := scanHold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrHoldNotFound
	}
	return h, err
}

// LiveStartingBetween returns HELD holds unexpired at now whose start lies
// in [from, to).
func (r *HoldRepo) LiveStartingBetween(ctx context.Context, q querier, venueID uint64, from, to, now time.Time) ([]model.Hold, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+holdColumns+` FROM holds
		 WHERE venue_id = ? AND status = 'HELD' AND expires_at > ?
		   AND starts_at >= ? AND starts_at < ?
		 ORDER BY id`,
		venueID, now.UTC(), from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *h)
	}
	return out, rows.Err()
}

// CreateTx inserts a hold and populates its generated ID and created_at.
func (r *HoldRepo) CreateTx(ctx context.Context, q querier, h *model.Hold) error {
	var tableID any
	if h.TableID != nil {
		tableID = *h.TableID
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO holds (venue_id, token, status, table_id, local_date, local_time,
		 starts_at, duration_min, party_size, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.VenueID, h.Token, h.Status, tableID, h.Date, h.Time,
		h.StartsAt.UTC(), h.DurationMin, h.PartySize, h.ExpiresAt.UTC())
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = uint64(id)
	return q.QueryRowContext(ctx, `SELECT created_at FROM holds WHERE id = ?`, h.ID).Scan(&h.CreatedAt)
}

// ExpireTx marks the venue's lapsed HELD holds EXPIRED and returns their
// ids so the caller can release their slot claims.
func (r *HoldRepo) ExpireTx(ctx context.Context, q querier, venueID uint64, now time.Time) ([]uint64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id FROM holds WHERE venue_id = ? AND status = 'HELD' AND expires_at <= ? FOR UPDATE`,
		venueID, now.UTC())
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	_, err = q.ExecContext(ctx,
		`UPDATE holds SET status = 'EXPIRED' WHERE venue_id = ? AND status = 'HELD' AND expires_at <= ?`,
		venueID, now.UTC())
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// ConsumeTx marks a hold CONSUMED and links the reservation.
func (r *HoldRepo) ConsumeTx(ctx context.Context, q querier, venueID, holdID, reservationID uint64) error {
	res, err := q.ExecContext(ctx,
		`UPDATE holds SET status = 'CONSUMED', reservation_id = ? WHERE id = ? AND venue_id = ?`,
		reservationID, holdID, venueID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrHoldNotFound
	}
	return nil
}
