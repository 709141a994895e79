package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaDDL is applied in order by EnsureSchema. held_until and the other
// DATETIME columns need parseTime=true on the DSN.
var schemaDDL = []string{
	`CREATE TABLE IF NOT EXISTS trips (
	id VARCHAR(64) PRIMARY KEY,
	route_from VARCHAR(255) NOT NULL,
	route_to VARCHAR(255) NOT NULL,
	departure_at DATETIME(6) NOT NULL,
	bus_ref VARCHAR(64) NOT NULL DEFAULT '',
	base_price BIGINT NOT NULL,
	created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS seats (
	trip_id VARCHAR(64) NOT NULL,
	seat_id VARCHAR(16) NOT NULL,
	position INT NOT NULL,
	status VARCHAR(16) NOT NULL,
	holder_id VARCHAR(64) NULL,
	held_until DATETIME(6) NULL,
	PRIMARY KEY (trip_id, seat_id),
	KEY idx_holder (holder_id),
	KEY idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS reservations (
	id VARCHAR(64) PRIMARY KEY,
	trip_id VARCHAR(64) NOT NULL,
	account_id VARCHAR(64) NOT NULL,
	placed_by VARCHAR(64) NULL,
	state VARCHAR(16) NOT NULL,
	amount BIGINT NOT NULL DEFAULT 0,
	purchase_tx_id VARCHAR(64) NULL,
	refund_tx_id VARCHAR(64) NULL,
	created_at DATETIME(6) NOT NULL,
	expires_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	KEY idx_pending_expiry (state, expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS reservation_seats (
	reservation_id VARCHAR(64) NOT NULL,
	seat_id VARCHAR(16) NOT NULL,
	position INT NOT NULL,
	PRIMARY KEY (reservation_id, seat_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS wallet_accounts (
	account_id VARCHAR(64) PRIMARY KEY,
	created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS ledger_transactions (
	seq BIGINT AUTO_INCREMENT PRIMARY KEY,
	id VARCHAR(64) NOT NULL,
	account_id VARCHAR(64) NOT NULL,
	type VARCHAR(16) NOT NULL,
	amount BIGINT NOT NULL,
	status VARCHAR(16) NOT NULL,
	idempotency_key VARCHAR(191) NOT NULL,
	linked_reservation_id VARCHAR(64) NULL,
	reverses_tx_id VARCHAR(64) NULL,
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uniq_tx_id (id),
	UNIQUE KEY uniq_account_idem (account_id, idempotency_key),
	KEY idx_account_status (account_id, status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

// EnsureSchema creates the core tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	for _, ddl := range schemaDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
