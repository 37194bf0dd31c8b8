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

	"go.uber.org/zap"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txContextKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txContextKey{}).(*sql.Tx)
	return tx
}

// SubledgerService handles subledger operations
type SubledgerService struct {
	db *sql.DB
}

func NewSubledgerService(db *sql.DB) *SubledgerService {
	return &SubledgerService{
		db: db,
	}
}

// reader returns the ambient transaction when one is active.
func (s *SubledgerService) reader(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}

// inTx runs fn in the ambient transaction, or in a new one committed on success.
func (s *SubledgerService) inTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if tx := txFromContext(ctx); tx != nil {
		return fn(ctx, tx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			zap.L().Warn("Failed to roll back subledger transaction", zap.Error(err))
		}
	}()

	if err := fn(withTx(ctx, tx), tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SubledgerService) InitSchema() error {
	schema := `
	-- Account Balances Table (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS account_balances (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		balance TEXT NOT NULL DEFAULT '0',
		last_transaction_id TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(account_id, asset)
	);

	-- Transactions Table (Audit Trail - Cold Data)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		asset TEXT NOT NULL,
		transaction_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		balance_before TEXT NOT NULL,
		balance_after TEXT NOT NULL,
		idempotency_key TEXT,
		operation_id TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		status TEXT DEFAULT 'confirmed',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Performance Indexes for Account Balances
	CREATE INDEX IF NOT EXISTS idx_account_balances_account_id ON account_balances(account_id);
	CREATE INDEX IF NOT EXISTS idx_account_balances_asset ON account_balances(asset);

	-- Performance Indexes for Transactions
	CREATE INDEX IF NOT EXISTS idx_transactions_account_asset ON transactions(account_id, asset);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency_key ON transactions(idempotency_key);
	CREATE INDEX IF NOT EXISTS idx_transactions_operation_id ON transactions(operation_id);

	-- Journal Entries for Double-Entry Bookkeeping
	CREATE TABLE IF NOT EXISTS journal_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL,
		account_type TEXT NOT NULL,
		account_id TEXT NOT NULL,
		debit_amount TEXT NOT NULL DEFAULT '0',
		credit_amount TEXT NOT NULL DEFAULT '0',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_journal_transaction_id ON journal_entries(transaction_id);
	CREATE INDEX IF NOT EXISTS idx_journal_account ON journal_entries(account_type, account_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
