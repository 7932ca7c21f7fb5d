package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-booking/internal/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx so every repo method can
// run inside or outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique-key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// MySQLStore implements Store on top of the MySQL schema created by
// database.Migrate.
type MySQLStore struct {
	db           *sql.DB
	venues       *VenueRepo
	tables       *TableRepo
	reservations *ReservationRepo
	holds        *HoldRepo
	claims       *ClaimRepo
}

var _ Store = (*MySQLStore)(nil)

// NewMySQLStore wires the per-table repos.  A nil codec stores contact
// fields as plaintext.
func NewMySQLStore(db *sql.DB, codec ContactCodec) *MySQLStore {
	if codec == nil {
		codec = PlainCodec{}
	}
	return &MySQLStore{
		db:           db,
		venues:       NewVenueRepo(db),
		tables:       NewTableRepo(db),
		reservations: NewReservationRepo(db, codec),
		holds:        NewHoldRepo(db),
		claims:       NewClaimRepo(),
	}
}

// DB exposes the underlying handle for health checks.
func (s *MySQLStore) DB() *sql.DB { return s.db }

func (s *MySQLStore) LoadVenueConfig(ctx context.Context, venueID uint64) (*model.VenueConfig, error) {
	return s.venues.LoadConfig(ctx, s.db, venueID)
}

func (s *MySQLStore) ListTables(ctx context.Context, venueID uint64, f TableFilter) ([]model.Table, error) {
	return s.tables.List(ctx, s.db, venueID, f)
}

func (s *MySQLStore) ReservationsStartingBetween(ctx context.Context, venueID uint64, from, to time.Time) ([]model.Reservation, error) {
	return s.reservations.StartingBetween(ctx, s.db, venueID, from, to)
}

func (s *MySQLStore) HoldsStartingBetween(ctx context.Context, venueID uint64, from, to, now time.Time) ([]model.Hold, error) {
	return s.holds.LiveStartingBetween(ctx, s.db, venueID, from, to, now)
}

func (s *MySQLStore) GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error) {
	return s.reservations.Get(ctx, s.db, venueID, id)
}

func (s *MySQLStore) GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error) {
	return s.holds.Get(ctx, s.db, venueID, id)
}

func (s *MySQLStore) ListReservations(ctx context.Context, venueID uint64, date string) ([]model.Reservation, error) {
	return s.reservations.ListByDate(ctx, s.db, venueID, date)
}

func (s *MySQLStore) AddBlackout(ctx context.Context, b *model.BlackoutDate) error {
	return s.venues.AddBlackout(ctx, s.db, b)
}

func (s *MySQLStore) DeleteBlackout(ctx context.Context, venueID uint64, date string) error {
	return s.venues.DeleteBlackout(ctx, s.db, venueID, date)
}

// InTx runs fn in a SERIALIZABLE transaction.  The transaction is committed
// when fn returns nil and rolled back otherwise.
func (s *MySQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		if isDuplicate(err) {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// SeedVenue inserts a venue configuration and its tables in one
// transaction.  It is used by the CLI to load demo data.
func (s *MySQLStore) SeedVenue(ctx context.Context, cfg *model.VenueConfig, tables []model.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := s.venues.CreateTx(ctx, tx, cfg); err != nil {
		return fmt.Errorf("insert venue: %w", err)
	}
	for i := range tables {
		tables[i].VenueID = cfg.Venue.ID
	}
	if err := s.tables.CreateBulk(ctx, tx, tables); err != nil {
		return fmt.Errorf("insert tables: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// sqlTx adapts an open *sql.Tx to the Tx interface.
type sqlTx struct {
	s  *MySQLStore
	tx *sql.Tx
}

func (t *sqlTx) ReservationsStartingBetween(ctx context.Context, venueID uint64, from, to time.Time) ([]model.Reservation, error) {
	return t.s.reservations.StartingBetween(ctx, t.tx, venueID, from, to)
}

func (t *sqlTx) HoldsStartingBetween(ctx context.Context, venueID uint64, from, to, now time.Time) ([]model.Hold, error) {
	return t.s.holds.LiveStartingBetween(ctx, t.tx, venueID, from, to, now)
}

func (t *sqlTx) LockSlot(ctx context.Context, key string) error {
	return t.s.claims.Lock(ctx, t.tx, key)
}

func (t *sqlTx) ExpireHolds(ctx context.Context, venueID uint64, now time.Time) (int, error) {
	ids, err := t.s.holds.ExpireTx(ctx, t.tx, venueID, now)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		if err := t.s.claims.Release(ctx, t.tx, ownerHold, id); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

func (t *sqlTx) GetReservation(ctx context.Context, venueID, id uint64) (*model.Reservation, error) {
	return t.s.reservations.GetForUpdate(ctx, t.tx, venueID, id)
}

func (t *sqlTx) InsertReservation(ctx context.Context, r *model.Reservation) error {
	if r.HoldID != nil {
		if err := t.s.claims.Release(ctx, t.tx, ownerHold, *r.HoldID); err != nil {
			return err
		}
	}
	if err := t.s.reservations.CreateTx(ctx, t.tx, r); err != nil {
		return err
	}
	if !r.Status.Blocking() {
		return nil
	}
	return t.s.claims.Claim(ctx, t.tx, r.VenueID, r.TableIDs, r.Date, r.Time, ownerReservation, r.ID)
}

func (t *sqlTx) UpdateReservation(ctx context.Context, r *model.Reservation) error {
	if err := t.s.reservations.UpdateTx(ctx, t.tx, r); err != nil {
		return err
	}
	if err := t.s.claims.Release(ctx, t.tx, ownerReservation, r.ID); err != nil {
		return err
	}
	if !r.Status.Blocking() {
		return nil
	}
	return t.s.claims.Claim(ctx, t.tx, r.VenueID, r.TableIDs, r.Date, r.Time, ownerReservation, r.ID)
}

func (t *sqlTx) GetHold(ctx context.Context, venueID, id uint64) (*model.Hold, error) {
	return t.s.holds.GetForUpdate(ctx, t.tx, venueID, id)
}

func (t *sqlTx) InsertHold(ctx context.Context, h *model.Hold) error {
	if err := t.s.holds.CreateTx(ctx, t.tx, h); err != nil {
		return err
	}
	return t.s.claims.Claim(ctx, t.tx, h.VenueID, h.TableIDs(), h.Date, h.Time, ownerHold, h.ID)
}

func (t *sqlTx) ConsumeHold(ctx context.Context, venueID, holdID, reservationID uint64) error {
	if err := t.s.holds.ConsumeTx(ctx, t.tx, venueID, holdID, reservationID); err != nil {
		return err
	}
	return t.s.claims.Release(ctx, t.tx, ownerHold, holdID)
}
