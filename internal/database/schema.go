package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the MySQL store uses.  Statements are
// idempotent so Migrate can run on every deploy.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS venues (
		id                      BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name                    VARCHAR(255) NOT NULL,
		timezone                VARCHAR(64)  NOT NULL,
		default_duration_min    INT NOT NULL DEFAULT 90,
		turn_time_min           INT NOT NULL DEFAULT 0,
		pacing_per_quarter_hour INT NOT NULL DEFAULT 0,
		hold_ttl_min            INT NOT NULL DEFAULT 10,
		cancel_window_min       INT NOT NULL DEFAULT 0,
		modify_window_min       INT NOT NULL DEFAULT 0,
		created_at              DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at              DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS shifts (
		id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id    BIGINT UNSIGNED NOT NULL,
		day_of_week TINYINT NOT NULL,
		start_time  CHAR(5) NOT NULL,
		end_time    CHAR(5) NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		capacity    INT NULL,
		KEY idx_shifts_venue (venue_id, day_of_week),
		CONSTRAINT fk_shifts_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS availability_rules (
		id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id        BIGINT UNSIGNED NOT NULL,
		min_party       INT NOT NULL,
		max_party       INT NOT NULL,
		slot_length_min INT NOT NULL,
		buffer_min      INT NOT NULL DEFAULT 0,
		KEY idx_rules_venue (venue_id),
		CONSTRAINT fk_rules_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS blackout_dates (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id      BIGINT UNSIGNED NOT NULL,
		blackout_date CHAR(10) NOT NULL,
		reason        VARCHAR(255) NOT NULL DEFAULT '',
		UNIQUE KEY uq_blackout (venue_id, blackout_date),
		CONSTRAINT fk_blackout_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS service_buffers (
		venue_id   BIGINT UNSIGNED PRIMARY KEY,
		before_min INT NOT NULL DEFAULT 0,
		after_min  INT NOT NULL DEFAULT 0,
		CONSTRAINT fk_buffer_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS pacing_rules (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id         BIGINT UNSIGNED NOT NULL,
		window_min       INT NOT NULL DEFAULT 15,
		max_reservations INT NULL,
		max_covers       INT NULL,
		is_active        BOOLEAN NOT NULL DEFAULT TRUE,
		KEY idx_pacing_venue (venue_id),
		CONSTRAINT fk_pacing_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS venue_tables (
		id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id      BIGINT UNSIGNED NOT NULL,
		label         VARCHAR(64) NOT NULL,
		capacity      INT NOT NULL,
		area          VARCHAR(64) NOT NULL DEFAULT '',
		zone          VARCHAR(64) NOT NULL DEFAULT '',
		join_group_id BIGINT UNSIGNED NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		UNIQUE KEY uq_table_label (venue_id, label),
		CONSTRAINT fk_tables_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS holds (
		id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id       BIGINT UNSIGNED NOT NULL,
		token          CHAR(36) NOT NULL,
		status         ENUM('HELD','CONSUMED','EXPIRED') NOT NULL DEFAULT 'HELD',
		table_id       BIGINT UNSIGNED NULL,
		local_date     CHAR(10) NOT NULL,
		local_time     CHAR(5)  NOT NULL,
		starts_at      DATETIME(6) NOT NULL,
		duration_min   INT NOT NULL,
		party_size     INT NOT NULL,
		expires_at     DATETIME(6) NOT NULL,
		reservation_id BIGINT UNSIGNED NULL,
		created_at     DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_hold_token (token),
		KEY idx_holds_window (venue_id, starts_at),
		KEY idx_holds_expiry (venue_id, status, expires_at),
		CONSTRAINT fk_holds_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id               BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id         BIGINT UNSIGNED NOT NULL,
		status           ENUM('PENDING','CONFIRMED','SEATED','COMPLETED','CANCELLED') NOT NULL,
		local_date       CHAR(10) NOT NULL,
		local_time       CHAR(5)  NOT NULL,
		starts_at        DATETIME(6) NOT NULL,
		duration_min     INT NOT NULL,
		party_size       INT NOT NULL,
		guest_name       TEXT NOT NULL,
		guest_phone      TEXT NOT NULL,
		guest_email      TEXT NOT NULL,
		notes            TEXT NOT NULL,
		hold_id          BIGINT UNSIGNED NULL,
		rescheduled_from BIGINT UNSIGNED NULL,
		created_at       DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at       DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		UNIQUE KEY uq_reservation_hold (hold_id),
		KEY idx_reservations_window (venue_id, starts_at),
		KEY idx_reservations_date (venue_id, local_date),
		CONSTRAINT fk_reservations_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservation_tables (
		reservation_id BIGINT UNSIGNED NOT NULL,
		position       INT NOT NULL,
		table_id       BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (reservation_id, position),
		CONSTRAINT fk_rt_reservation FOREIGN KEY (reservation_id) REFERENCES reservations(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	// table_id 0 is the table-less claim.
	`CREATE TABLE IF NOT EXISTS slot_claims (
		venue_id   BIGINT UNSIGNED NOT NULL,
		table_id   BIGINT UNSIGNED NOT NULL,
		local_date CHAR(10) NOT NULL,
		local_time CHAR(5)  NOT NULL,
		owner_type ENUM('reservation','hold') NOT NULL,
		owner_id   BIGINT UNSIGNED NOT NULL,
		UNIQUE KEY uq_slot (venue_id, table_id, local_date, local_time),
		KEY idx_claim_owner (owner_type, owner_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS slot_locks (
		lock_key  VARCHAR(191) PRIMARY KEY,
		locked_at DATETIME(6) NOT NULL
	) ENGINE=InnoDB`,
}

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
