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

package store

import (
	"context"
	"errors"

	"note-option-ledger-go/internal/models"
)

// Sentinel errors shared by every backend
var (
	ErrNotFound               = errors.New("record not found")
	ErrAlreadyExists          = errors.New("record already exists")
	ErrDuplicateTransaction   = errors.New("duplicate transaction")
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrNotHeld                = errors.New("instrument not held by caller")
)

// OptionFilter narrows ListOptions results.
type OptionFilter struct {
	SpentOnly bool
	Owner     string
	Limit     int
}

// Tx is the record view handed to a unit of work. Every read observes the
// writes already made inside the same unit and nothing uncommitted from others.
type Tx interface {
	// --- Singletons ---
	LoadConfig(ctx context.Context) (*models.ProtocolConfig, error)
	InsertConfig(ctx context.Context, cfg *models.ProtocolConfig) error
	SaveConfig(ctx context.Context, cfg *models.ProtocolConfig) error
	LoadTreasury(ctx context.Context) (*models.Treasury, error)
	InsertTreasury(ctx context.Context, treasury *models.Treasury) error
	SaveTreasury(ctx context.Context, treasury *models.Treasury) error

	// --- Deposit receipts ---
	LoadReceipt(ctx context.Context, depositor string) (*models.DepositReceipt, error)
	SaveReceipt(ctx context.Context, receipt *models.DepositReceipt) error
	ListStaleReceipts(ctx context.Context, now int64) ([]models.DepositReceipt, error)

	// --- Option records ---
	LoadOption(ctx context.Context, claimTokenId string) (*models.OptionRecord, error)
	InsertOption(ctx context.Context, option *models.OptionRecord) error
	SaveOption(ctx context.Context, option *models.OptionRecord) error
	DeleteOption(ctx context.Context, claimTokenId string) error
	ListOptions(ctx context.Context, filter OptionFilter) ([]models.OptionRecord, error)

	// --- Audit trail ---
	AppendEvent(ctx context.Context, event *models.LedgerEvent) error
	ListEvents(ctx context.Context, subject string, limit int) ([]models.LedgerEvent, error)
}

// LedgerStore defines the contract that every backend (SQLite, in-memory, ...) must satisfy.
type LedgerStore interface {
	// Atomically runs fn as one unit: either every write made through tx (and
	// through collaborators enlisted via the returned context) commits, or none do.
	Atomically(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// --- Lifecycle ---
	Close()
}
