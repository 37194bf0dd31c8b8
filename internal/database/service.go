/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

type Service struct {
	db        *sql.DB
	subledger *SubledgerService
	assets    *Assets
	claims    *ClaimRegistry
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	// _txlock=immediate: every unit of work takes the write lock at BEGIN.
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after ping failure", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service, err := newServiceFromDB(db)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			zap.L().Warn("Failed to close database after schema failure", zap.Error(closeErr))
		}
		return nil, err
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func newServiceFromDB(db *sql.DB) (*Service, error) {
	subledger := NewSubledgerService(db)
	service := &Service{
		db:        db,
		subledger: subledger,
		assets:    NewAssets(subledger),
		claims:    NewClaimRegistry(db),
	}
	if err := service.initSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	// Initialize subledger schema
	if err := subledger.InitSchema(); err != nil {
		return nil, fmt.Errorf("unable to initialize subledger schema: %w", err)
	}
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Ping checks that the database still answers.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Assets returns the custody, token and storage collaborators backed by the subledger.
func (s *Service) Assets() *Assets { return s.assets }

// Claims returns the claim instrument registry.
func (s *Service) Claims() *ClaimRegistry { return s.claims }

// Subledger exposes balance and history reads over the asset subledger.
func (s *Service) Subledger() *SubledgerService { return s.subledger }

// Atomically runs fn inside one SQLite transaction. The transaction travels
// in ctx so the subledger and claim registry write through it too. A nested
// call joins the transaction already in ctx.
func (s *Service) Atomically(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx, &recordsTx{q: tx})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			zap.L().Warn("Failed to roll back transaction", zap.Error(err))
		}
	}()

	if err := fn(withTx(ctx, tx), &recordsTx{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) initSchema() error {
	schema := `
	-- Protocol config singleton
	CREATE TABLE IF NOT EXISTS protocol_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		authority TEXT NOT NULL DEFAULT '',
		note_asset_id TEXT NOT NULL,
		token_asset_id TEXT NOT NULL,
		collection_id TEXT NOT NULL,
		fee_bps INTEGER,
		option_count TEXT NOT NULL DEFAULT '0',
		total_option_amount TEXT NOT NULL DEFAULT '0',
		deposit_nonce TEXT NOT NULL DEFAULT '0',
		locked BOOLEAN NOT NULL DEFAULT 0,
		deposit_locked BOOLEAN NOT NULL DEFAULT 0,
		convert_locked BOOLEAN NOT NULL DEFAULT 0,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Treasury singleton
	CREATE TABLE IF NOT EXISTS treasury (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		authority TEXT NOT NULL DEFAULT '',
		total_deposited TEXT NOT NULL DEFAULT '0',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- One receipt slot per depositor
	CREATE TABLE IF NOT EXISTS deposit_receipts (
		depositor TEXT PRIMARY KEY,
		initialized BOOLEAN NOT NULL DEFAULT 0,
		nft_issued BOOLEAN NOT NULL DEFAULT 0,
		amount TEXT NOT NULL DEFAULT '0',
		expiration INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_receipts_pending ON deposit_receipts(initialized, expiration);

	-- Option records keyed by claim instrument
	CREATE TABLE IF NOT EXISTS option_records (
		claim_token_id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		amount TEXT NOT NULL,
		original_amount TEXT NOT NULL,
		expiration INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_option_records_owner ON option_records(owner);
	CREATE INDEX IF NOT EXISTS idx_option_records_amount ON option_records(amount);
	CREATE INDEX IF NOT EXISTS idx_option_records_created_at ON option_records(created_at);

	-- Claim instruments
	CREATE TABLE IF NOT EXISTS claim_instruments (
		id TEXT PRIMARY KEY,
		holder TEXT NOT NULL,
		collection_id TEXT NOT NULL,
		name TEXT NOT NULL,
		symbol TEXT NOT NULL,
		uri TEXT NOT NULL,
		verified BOOLEAN NOT NULL DEFAULT 0,
		burned BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_claim_instruments_holder ON claim_instruments(holder);

	-- Operation audit trail
	CREATE TABLE IF NOT EXISTS ledger_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		operation_id TEXT NOT NULL DEFAULT '',
		kind TEXT NOT NULL,
		subject TEXT NOT NULL,
		amount TEXT NOT NULL DEFAULT '0',
		detail TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_ledger_events_subject ON ledger_events(subject);
	CREATE INDEX IF NOT EXISTS idx_ledger_events_operation ON ledger_events(operation_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
