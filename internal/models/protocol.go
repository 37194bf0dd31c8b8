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

package models

import "time"

// ProtocolConfig is the protocol-wide singleton holding asset identities,
// administrative authority, feature locks and running option counters.
type ProtocolConfig struct {
	// Authority may change locks and receives reclaimed storage. Empty means unset.
	Authority         string    `json:"authority,omitempty"`
	NoteAssetId       string    `json:"note_asset_id"`
	TokenAssetId      string    `json:"token_asset_id"`
	CollectionId      string    `json:"collection_id"`
	FeeBps            *uint16   `json:"fee_bps,omitempty"`
	OptionCount       uint64    `json:"option_count"`
	TotalOptionAmount uint64    `json:"total_option_amount"`
	DepositNonce      uint64    `json:"deposit_nonce"` // reserved
	Locked            bool      `json:"locked"`
	DepositLocked     bool      `json:"deposit_locked"`
	ConvertLocked     bool      `json:"convert_locked"`
	Version           int64     `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// HasAuthority reports whether an administrative authority is configured.
func (c *ProtocolConfig) HasAuthority() bool {
	return c != nil && c.Authority != ""
}

// Treasury tracks cumulative deposited value. TotalDeposited is a historical
// counter and is never decremented.
type Treasury struct {
	Authority      string    `json:"authority,omitempty"`
	TotalDeposited uint64    `json:"total_deposited"`
	Version        int64     `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DepositReceipt is the per-depositor slot recording a deposit that has not
// yet been materialized into an option.
type DepositReceipt struct {
	Depositor   string    `json:"depositor"`
	Initialized bool      `json:"initialized"`
	NftIssued   bool      `json:"nft_issued"`
	Amount      uint64    `json:"amount"`
	Expiration  int64     `json:"expiration"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Outstanding reports whether the receipt holds an unclaimed deposit.
func (r *DepositReceipt) Outstanding() bool {
	return r != nil && r.Initialized
}

// OptionRecord is the convertible claim backed by one external claim instrument.
type OptionRecord struct {
	ClaimTokenId   string    `json:"claim_token_id"`
	Owner          string    `json:"owner"`
	Amount         uint64    `json:"amount"`
	OriginalAmount uint64    `json:"original_amount"`
	Expiration     int64     `json:"expiration"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Spent reports whether the option has been fully converted.
func (o *OptionRecord) Spent() bool {
	return o.Amount == 0
}

// Expired reports whether conversion is refused at the given unix time.
// The expiration second itself is still convertible.
func (o *OptionRecord) Expired(now int64) bool {
	return now > o.Expiration
}

// LedgerEvent is one row of the append-only operation audit trail.
type LedgerEvent struct {
	Id          string    `json:"id"`
	OperationId string    `json:"operation_id"`
	Kind        string    `json:"kind"`
	Subject     string    `json:"subject"`
	Amount      uint64    `json:"amount"`
	Detail      string    `json:"detail,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Ledger event kinds
const (
	EventInitialized       = "initialized"
	EventDeposit           = "deposit"
	EventOptionIssued      = "option_issued"
	EventConvertPartial    = "convert_partial"
	EventConvertFull       = "convert_full"
	EventOptionClosed      = "option_closed"
	EventOptionTransferred = "option_transferred"
	EventLocksUpdated      = "locks_updated"
)

// Asset books kept alongside the note and protocol-token assets
const (
	NativeAsset  = "NATIVE"
	StorageAsset = "STORAGE"
)

// StoragePoolAccount funds the storage allowance returned when options are closed.
const StoragePoolAccount = "storage-pool"
