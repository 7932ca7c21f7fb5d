package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/venue-booking/internal/model"
)

// TableRepo provides access to venue_tables.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo constructs a TableRepo with the given DB handle.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

// List returns the venue's tables matching f, ordered by id.
func (r *TableRepo) List(ctx context.Context, q querier, venueID uint64, f TableFilter) ([]model.Table, error) {
	query := `SELECT id, venue_id, label, capacity, area, zone, join_group_id, is_active
	          FROM venue_tables WHERE venue_id = ?`
	args := []any{venueID}
	if f.MinCapacity > 0 {
		query += ` AND capacity >= ?`
		args = append(args, f.MinCapacity)
	}
	if f.Area != "" {
		query += ` AND area = ?`
		args = append(args, f.Area)
	}
	if f.ActiveOnly {
		query += ` AND is_active = 1`
	}
	if len(f.TableIDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(",?", len(f.TableIDs)-1) + `)`
		for _, id := range f.TableIDs {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Table
	for rows.Next() {
		var (
			t     model.Table
			group sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.VenueID, &t.Label, &t.Capacity, &t.Area, &t.Zone, &group, &t.IsActive); err != nil {
			return nil, err
		}
		if group.Valid {
			g := uint64(group.Int64)
			t.JoinGroupID = &g
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateBulk inserts tables in a single statement.  IDs are taken from the
// records when set so seeded data keeps stable ids.
func (r *TableRepo) CreateBulk(ctx context.Context, q querier, tables []model.Table) error {
	if len(tables) == 0 {
		return nil
	}
	query := `INSERT INTO venue_tables (id, venue_id, label, capacity, area, zone, join_group_id, is_active) VALUES `
	args := make([]any, 0, len(tables)*8)
	for i, t := range tables {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?, ?, ?, ?, ?)"
		var group any
		if t.JoinGroupID != nil {
			group = *t.JoinGroupID
		}
		var id any
		if t.ID != 0 {
			id = t.ID
		}
		args = append(args, id, t.VenueID, t.Label, t.Capacity, t.Area, t.Zone, group, t.IsActive)
	}
	_, err := q.ExecContext(ctx, query, args...)
	return err
}
