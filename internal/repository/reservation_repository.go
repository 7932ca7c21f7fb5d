package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/venue-booking/internal/model"
)

// ReservationRepo provides CRUD operations for reservations and their
// ordered table assignments.  Assignments are stored in reservation_tables
// with a position column; position 0 is the primary table.  Guest contact
// columns pass through the codec on every read and write.  All timestamp
// fields are stored in UTC.
type ReservationRepo struct {
	db    *sql.DB
	codec ContactCodec
}

// NewReservationRepo returns a new ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB, codec ContactCodec) *ReservationRepo {
	return &ReservationRepo{db: db, codec: codec}
}

const reservationColumns = `id, venue_id, status, local_date, local_time, starts_at, duration_min,
	party_size, guest_name, guest_phone, guest_email, notes, hold_id, rescheduled_from,
	created_at, updated_at`

func (r *ReservationRepo) scan(s rowScanner) (*model.Reservation, error) {
	var (
		res        model.Reservation
		sealed     model.GuestContact
		holdID     sql.NullInt64
		reschedule sql.NullInt64
	)
	err := s.Scan(&res.ID, &res.VenueID, &res.Status, &res.Date, &res.Time, &res.StartsAt, &res.DurationMin,
		&res.PartySize, &sealed.Name, &sealed.Phone, &sealed.Email, &res.Notes, &holdID, &reschedule,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if res.Guest, err = openContact(r.codec, sealed); err != nil {
		return nil, fmt.Errorf("open contact of reservation %d: %w", res.ID, err)
	}
	if holdID.Valid {
		v := uint64(holdID.Int64)
		res.HoldID = &v
	}
	if reschedule.Valid {
		v := uint64(reschedule.Int64)
		res.RescheduledFrom = &v
	}
	return &res, nil
}

// Get loads a reservation of the venue with its tables.
func (r *ReservationRepo) Get(ctx context.Context, q querier, venueID, id uint64) (*model.Reservation, error) {
	return r.get(ctx, q, venueID, id, "")
}

// GetForUpdate loads a reservation and locks its row for the transaction.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, q querier, venueID, id uint64) (*model.Reservation, error) {
	return r.get(ctx, q, venueID, id, " FOR UPDATE")
}

func (r *ReservationRepo) get(ctx context.Context, q querier, venueID, id uint64, suffix string) (*model.Reservation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ? AND venue_id = ?`+suffix, id, venueID)
	res, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, err
	}
	list := []model.Reservation{*res}
	if err := r.attachTables(ctx, q, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// StartingBetween returns PENDING, CONFIRMED and SEATED reservations whose
// start lies in [from, to), ordered by id.
func (r *ReservationRepo) StartingBetween(ctx context.Context, q querier, venueID uint64, from, to time.Time) ([]model.Reservation, error) {
	return r.list(ctx, q,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE venue_id = ? AND status IN ('PENDING','CONFIRMED','SEATED')
		   AND starts_at >= ? AND starts_at < ?
		 ORDER BY id`,
		venueID, from.UTC(), to.UTC())
}

// ListByDate returns every reservation on a local date ordered by time.
func (r *ReservationRepo) ListByDate(ctx context.Context, q querier, venueID uint64, date string) ([]model.Reservation, error) {
	return r.list(ctx, q,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE venue_id = ? AND local_date = ?
		 ORDER BY starts_at, id`,
		venueID, date)
}

func (r *ReservationRepo) list(ctx context.Context, q querier, query string, args ...any) ([]model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var out []model.Reservation
	for rows.Next() {
		res, err := r.scan(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := r.attachTables(ctx, q, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachTables fills TableIDs for every reservation in one query.
func (r *ReservationRepo) attachTables(ctx context.Context, q querier, list []model.Reservation) error {
	if len(list) == 0 {
		return nil
	}
	index := make(map[uint64]int, len(list))
	args := make([]any, 0, len(list))
	for i, res := range list {
		index[res.ID] = i
		args = append(args, res.ID)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT reservation_id, table_id FROM reservation_tables
		 WHERE reservation_id IN (?`+strings.Repeat(",?", len(list)-1)+`)
		 ORDER BY reservation_id, position`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var rid, tid uint64
		if err := rows.Scan(&rid, &tid); err != nil {
			return err
		}
		i := index[rid]
		list[i].TableIDs = append(list[i].TableIDs, tid)
	}
	return rows.Err()
}

// CreateTx inserts a reservation and its table assignments within the
// caller's transaction, populating the generated ID and timestamps.
func (r *ReservationRepo) CreateTx(ctx context.Context, q querier, res *model.Reservation) error {
	sealed, err := sealContact(r.codec, res.Guest)
	if err != nil {
		return fmt.Errorf("seal contact: %w", err)
	}
	result, err := q.ExecContext(ctx,
		`INSERT INTO reservations (venue_id, status, local_date, local_time, starts_at, duration_min, party_size,
		                           guest_name, guest_phone, guest_email, notes, hold_id, rescheduled_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.VenueID, res.Status, res.Date, res.Time, res.StartsAt.UTC(), res.DurationMin, res.PartySize,
		sealed.Name, sealed.Phone, sealed.Email, res.Notes, idArg(res.HoldID), idArg(res.RescheduledFrom))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	if err := r.insertTables(ctx, q, res.ID, res.TableIDs); err != nil {
		return err
	}
	return q.QueryRowContext(ctx, `SELECT created_at, updated_at FROM reservations WHERE id = ?`, res.ID).
		Scan(&res.CreatedAt, &res.UpdatedAt)
}

// UpdateTx rewrites the mutable columns and the table assignment.
func (r *ReservationRepo) UpdateTx(ctx context.Context, q querier, res *model.Reservation) error {
	sealed, err := sealContact(r.codec, res.Guest)
	if err != nil {
		return fmt.Errorf("seal contact: %w", err)
	}
	result, err := q.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, local_date = ?, local_time = ?, starts_at = ?, duration_min = ?, party_size = ?,
		     guest_name = ?, guest_phone = ?, guest_email = ?, notes = ?, updated_at = UTC_TIMESTAMP(6)
		 WHERE id = ? AND venue_id = ?`,
		res.Status, res.Date, res.Time, res.StartsAt.UTC(), res.DurationMin, res.PartySize,
		sealed.Name, sealed.Phone, sealed.Email, res.Notes, res.ID, res.VenueID)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrReservationNotFound
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM reservation_tables WHERE reservation_id = ?`, res.ID); err != nil {
		return err
	}
	if err := r.insertTables(ctx, q, res.ID, res.TableIDs); err != nil {
		return err
	}
	return q.QueryRowContext(ctx, `SELECT updated_at FROM reservations WHERE id = ?`, res.ID).Scan(&res.UpdatedAt)
}

func (r *ReservationRepo) insertTables(ctx context.Context, q querier, reservationID uint64, tableIDs []uint64) error {
	if len(tableIDs) == 0 {
		return nil
	}
	query := `INSERT INTO reservation_tables (reservation_id, position, table_id) VALUES `
	args := make([]any, 0, len(tableIDs)*3)
	for i, tid := range tableIDs {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, reservationID, i, tid)
	}
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func idArg(p *uint64) any {
	if p == nil {
		return nil
	}
	return *p
}
