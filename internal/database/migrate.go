package database

import (
	"context"
	"database/sql"
)

// Migrate creates the application schema when it does not exist yet.
// Statements are ordered so that referenced tables are created first.
// Uniqueness constraints double as idempotency guards: duplicate webhook
// deliveries and retried ledger operations are rejected by the storage
// layer even if application-level checks are bypassed.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			email         VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(255) NOT NULL,
			full_name     VARCHAR(255) NOT NULL DEFAULT '',
			role          ENUM('CUSTOMER','ADMIN') NOT NULL DEFAULT 'CUSTOMER',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			user_id         BIGINT UNSIGNED NOT NULL UNIQUE,
			balance_cents   BIGINT NOT NULL DEFAULT 0,
			pending_cents   BIGINT NOT NULL DEFAULT 0,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT fk_accounts_user FOREIGN KEY (user_id) REFERENCES users(id),
			CONSTRAINT chk_balance_nonneg CHECK (balance_cents >= 0),
			CONSTRAINT chk_pending_nonneg CHECK (pending_cents >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id            BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			account_id    BIGINT UNSIGNED NOT NULL,
			kind          ENUM('DEPOSIT','RESERVE','CONFIRM','RELEASE','REFUND','WITHDRAWAL') NOT NULL,
			amount_cents  BIGINT NOT NULL,
			balance_after BIGINT NOT NULL,
			pending_after BIGINT NOT NULL,
			reference     VARCHAR(64) NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_ledger_account FOREIGN KEY (account_id) REFERENCES accounts(id),
			UNIQUE KEY uq_ledger_ref_kind (account_id, reference, kind),
			CONSTRAINT chk_amount_positive CHECK (amount_cents > 0)
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id                  BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			name                VARCHAR(255) NOT NULL,
			starts_on           DATE NOT NULL,
			registration_due    DATE NOT NULL,
			fee_cents           BIGINT NOT NULL,
			created_at          DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS players (
			id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			user_id    BIGINT UNSIGNED NOT NULL,
			full_name  VARCHAR(255) NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_players_user FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id                   BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			name                 VARCHAR(255) NOT NULL,
			nightly_cents        BIGINT NOT NULL,
			included_guests      INT UNSIGNED NOT NULL DEFAULT 2,
			max_guests           INT UNSIGNED NOT NULL DEFAULT 4,
			extra_guest_cents    BIGINT NOT NULL DEFAULT 0,
			nightly_tax_cents    BIGINT NOT NULL DEFAULT 0,
			created_at           DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS room_inventory (
			id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			room_id    BIGINT UNSIGNED NOT NULL,
			night      DATE NOT NULL,
			available  INT NOT NULL,
			CONSTRAINT fk_inventory_room FOREIGN KEY (room_id) REFERENCES rooms(id),
			UNIQUE KEY uq_room_night (room_id, night),
			CONSTRAINT chk_available_nonneg CHECK (available >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS checkouts (
			id                        BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			reference                 VARCHAR(64) NOT NULL UNIQUE,
			user_id                   BIGINT UNSIGNED NOT NULL,
			event_id                  BIGINT UNSIGNED NOT NULL,
			external_session_id       VARCHAR(128) NOT NULL UNIQUE,
			mode                      ENUM('PAY_NOW','INSTALLMENT_PLAN') NOT NULL,
			status                    ENUM('CREATED','PAID','CANCELLED','EXPIRED') NOT NULL DEFAULT 'CREATED',
			currency                  CHAR(3) NOT NULL,
			amount_total_cents        BIGINT NOT NULL,
			wallet_reserved_cents     BIGINT NOT NULL DEFAULT 0,
			breakdown                 JSON NOT NULL,
			selected_player_ids       JSON NOT NULL,
			room_selection_snapshot   JSON NOT NULL,
			installment_count         INT UNSIGNED NOT NULL DEFAULT 1,
			installment_cents         BIGINT NOT NULL DEFAULT 0,
			external_subscription_id  VARCHAR(128) NULL,
			paid_at                   DATETIME NULL,
			created_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at                DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT fk_checkouts_user FOREIGN KEY (user_id) REFERENCES users(id),
			CONSTRAINT fk_checkouts_event FOREIGN KEY (event_id) REFERENCES events(id)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id                     BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			checkout_id            BIGINT UNSIGNED NOT NULL UNIQUE,
			user_id                BIGINT UNSIGNED NOT NULL,
			event_id               BIGINT UNSIGNED NOT NULL,
			status                 ENUM('ACTIVE','COMPLETED','ABANDONED') NOT NULL DEFAULT 'ACTIVE',
			currency               CHAR(3) NOT NULL,
			amount_total_cents     BIGINT NOT NULL,
			registered_player_ids  JSON NOT NULL,
			installments_total     INT UNSIGNED NOT NULL,
			installments_paid      INT UNSIGNED NOT NULL,
			installment_cents      BIGINT NOT NULL,
			created_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at             DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			CONSTRAINT fk_orders_checkout FOREIGN KEY (checkout_id) REFERENCES checkouts(id),
			CONSTRAINT fk_orders_user FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE TABLE IF NOT EXISTS installment_payments (
			id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			order_id    BIGINT UNSIGNED NOT NULL,
			invoice_id  VARCHAR(128) NOT NULL,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_order_invoice (order_id, invoice_id),
			CONSTRAINT fk_instpay_order FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,
		`CREATE TABLE IF NOT EXISTS room_reservations (
			id              BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			room_id         BIGINT UNSIGNED NOT NULL,
			order_id        BIGINT UNSIGNED NULL,
			user_id         BIGINT UNSIGNED NOT NULL,
			status          ENUM('CONFIRMED','CANCELLED') NOT NULL DEFAULT 'CONFIRMED',
			check_in        DATE NOT NULL,
			check_out       DATE NOT NULL,
			occupancy       INT UNSIGNED NOT NULL,
			total_cents     BIGINT NOT NULL,
			tax_cents       BIGINT NOT NULL,
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_resv_room FOREIGN KEY (room_id) REFERENCES rooms(id),
			CONSTRAINT fk_resv_order FOREIGN KEY (order_id) REFERENCES orders(id)
		)`,
		`CREATE TABLE IF NOT EXISTS room_reservation_guests (
			id             BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			reservation_id BIGINT UNSIGNED NOT NULL,
			full_name      VARCHAR(255) NOT NULL,
			note           VARCHAR(255) NOT NULL DEFAULT '',
			CONSTRAINT fk_guest_resv FOREIGN KEY (reservation_id) REFERENCES room_reservations(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS attendances (
			id         BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			event_id   BIGINT UNSIGNED NOT NULL,
			player_id  BIGINT UNSIGNED NOT NULL,
			order_id   BIGINT UNSIGNED NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			CONSTRAINT fk_att_event FOREIGN KEY (event_id) REFERENCES events(id),
			CONSTRAINT fk_att_player FOREIGN KEY (player_id) REFERENCES players(id),
			UNIQUE KEY uq_event_player (event_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS discrepancies (
			id          BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			kind        VARCHAR(64) NOT NULL,
			checkout_id BIGINT UNSIGNED NULL,
			order_id    BIGINT UNSIGNED NULL,
			detail      TEXT NOT NULL,
			resolved    TINYINT(1) NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, q := range stmts {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}
