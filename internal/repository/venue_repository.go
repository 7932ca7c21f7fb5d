package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/venue-booking/internal/model"
)

// VenueRepo reads and writes a venue's scheduling configuration: the venue
// row plus shifts, availability rules, blackout dates, pacing rules and the
// service buffer.
type VenueRepo struct {
	db *sql.DB
}

// NewVenueRepo constructs a VenueRepo with the given DB handle.
func NewVenueRepo(db *sql.DB) *VenueRepo {
	return &VenueRepo{db: db}
}

// LoadConfig returns the venue with its active shifts, rules, blackout
// dates, active pacing rules and buffer.  It returns ErrVenueNotFound if
// there is no matching venue.
func (r *VenueRepo) LoadConfig(ctx context.Context, q querier, venueID uint64) (*model.VenueConfig, error) {
	cfg := &model.VenueConfig{}
	v := &cfg.Venue
	err := q.QueryRowContext(ctx,
		`SELECT id, name, timezone, default_duration_min, turn_time_min, pacing_per_quarter_hour,
		        hold_ttl_min, cancel_window_min, modify_window_min, created_at, updated_at
		 FROM venues WHERE id = ?`, venueID).Scan(
		&v.ID, &v.Name, &v.Timezone, &v.DefaultDurationMin, &v.TurnTimeMin, &v.PacingPerQuarterHour,
		&v.HoldTTLMin, &v.CancelWindowMin, &v.ModifyWindowMin, &v.CreatedAt, &v.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrVenueNotFound
	}
	if err != nil {
		return nil, err
	}

	if cfg.Shifts, err = r.shifts(ctx, q, venueID); err != nil {
		return nil, err
	}
	if cfg.Rules, err = r.rules(ctx, q, venueID); err != nil {
		return nil, err
	}
	if cfg.Blackouts, err = r.blackouts(ctx, q, venueID); err != nil {
		return nil, err
	}
	if cfg.Pacing, err = r.pacing(ctx, q, venueID); err != nil {
		return nil, err
	}
	cfg.Buffer.VenueID = venueID
	err = q.QueryRowContext(ctx,
		`SELECT before_min, after_min FROM service_buffers WHERE venue_id = ?`, venueID).
		Scan(&cfg.Buffer.BeforeMin, &cfg.Buffer.AfterMin)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return cfg, nil
}

func (r *VenueRepo) shifts(ctx context.Context, q querier, venueID uint64) ([]model.Shift, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, venue_id, day_of_week, start_time, end_time, is_active, capacity
		 FROM shifts WHERE venue_id = ? AND is_active = 1 ORDER BY id`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Shift
	for rows.Next() {
		var (
			s   model.Shift
			capacity sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.VenueID, &s.DayOfWeek, &s.StartTime, &s.EndTime, &s.IsActive, &capacity); err != nil {
			return nil, err
		}
		s.Capacity = nullInt(capacity)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *VenueRepo) rules(ctx context.Context, q querier, venueID uint64) ([]model.AvailabilityRule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, venue_id, min_party, max_party, slot_length_min, buffer_min
		 FROM availability_rules WHERE venue_id = ? ORDER BY id`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.AvailabilityRule
	for rows.Next() {
		var a model.AvailabilityRule
		if err := rows.Scan(&a.ID, &a.VenueID, &a.MinParty, &a.MaxParty, &a.SlotLengthMin, &a.BufferMin); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *VenueRepo) blackouts(ctx context.Context, q querier, venueID uint64) ([]model.BlackoutDate, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, venue_id, blackout_date, reason FROM blackout_dates WHERE venue_id = ? ORDER BY blackout_date`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.BlackoutDate
	for rows.Next() {
		var b model.BlackoutDate
		if err := rows.Scan(&b.ID, &b.VenueID, &b.Date, &b.Reason); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *VenueRepo) pacing(ctx context.Context, q querier, venueID uint64) ([]model.PacingRule, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, venue_id, window_min, max_reservations, max_covers, is_active
		 FROM pacing_rules WHERE venue_id = ? AND is_active = 1 ORDER BY id`, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PacingRule
	for rows.Next() {
		var (
			p             model.PacingRule
			maxRes, maxCv sql.NullInt64
		)
		if err := rows.Scan(&p.ID, &p.VenueID, &p.WindowMin, &maxRes, &maxCv, &p.IsActive); err != nil {
			return nil, err
		}
		p.MaxReservations = nullInt(maxRes)
		p.MaxCovers = nullInt(maxCv)
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

// AddBlackout closes a date.  Closing an already closed date fails with
// ErrConflict.
func (r *VenueRepo) AddBlackout(ctx context.Context, q querier, b *model.BlackoutDate) error {
	var exists int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM venues WHERE id = ?`, b.VenueID).Scan(&exists); err != nil {
		return err
	}
	if exists == 0 {
		return ErrVenueNotFound
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO blackout_dates (venue_id, blackout_date, reason) VALUES (?, ?, ?)`,
		b.VenueID, b.Date, b.Reason)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// DeleteBlackout reopens a date.
func (r *VenueRepo) DeleteBlackout(ctx context.Context, q querier, venueID uint64, date string) error {
	res, err := q.ExecContext(ctx, `DELETE FROM blackout_dates WHERE venue_id = ? AND blackout_date = ?`, venueID, date)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBlackoutNotFound
	}
	return nil
}

// CreateTx inserts a full venue configuration.  IDs present on the records
// are kept.
func (r *VenueRepo) CreateTx(ctx context.Context, q querier, cfg *model.VenueConfig) error {
	v := cfg.Venue
	var id any
	if v.ID != 0 {
		id = v.ID
	}
	res, err := q.ExecContext(ctx,
		`INSERT INTO venues (id, name, timezone, default_duration_min, turn_time_min, pacing_per_quarter_hour,
		                     hold_ttl_min, cancel_window_min, modify_window_min)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, v.Name, v.Timezone, v.DefaultDurationMin, v.TurnTimeMin, v.PacingPerQuarterHour,
		v.HoldTTLMin, v.CancelWindowMin, v.ModifyWindowMin)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	if v.ID == 0 {
		newID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		cfg.Venue.ID = uint64(newID)
	}
	venueID := cfg.Venue.ID

	for _, s := range cfg.Shifts {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO shifts (venue_id, day_of_week, start_time, end_time, is_active, capacity) VALUES (?, ?, ?, ?, ?, ?)`,
			venueID, s.DayOfWeek, s.StartTime, s.EndTime, s.IsActive, intArg(s.Capacity)); err != nil {
			return err
		}
	}
	for _, a := range cfg.Rules {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO availability_rules (venue_id, min_party, max_party, slot_length_min, buffer_min) VALUES (?, ?, ?, ?, ?)`,
			venueID, a.MinParty, a.MaxParty, a.SlotLengthMin, a.BufferMin); err != nil {
			return err
		}
	}
	for _, b := range cfg.Blackouts {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO blackout_dates (venue_id, blackout_date, reason) VALUES (?, ?, ?)`,
			venueID, b.Date, b.Reason); err != nil {
			return err
		}
	}
	for _, p := range cfg.Pacing {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO pacing_rules (venue_id, window_min, max_reservations, max_covers, is_active) VALUES (?, ?, ?, ?, ?)`,
			venueID, p.WindowMin, intArg(p.MaxReservations), intArg(p.MaxCovers), p.IsActive); err != nil {
			return err
		}
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO service_buffers (venue_id, before_min, after_min) VALUES (?, ?, ?)`,
		venueID, cfg.Buffer.BeforeMin, cfg.Buffer.AfterMin)
	return err
}
