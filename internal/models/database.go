package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountBalance represents current balance state of one asset in one ledger account (hot data)
type AccountBalance struct {
	Id                string          `db:"id" json:"id"`
	AccountId         string          `db:"account_id" json:"account_id"`
	Asset             string          `db:"asset" json:"asset"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	LastTransactionId string          `db:"last_transaction_id" json:"last_transaction_id"`
	Version           int64           `db:"version" json:"version"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// Transaction represents immutable asset movement history (cold data)
type Transaction struct {
	Id              string          `db:"id" json:"id"`
	AccountId       string          `db:"account_id" json:"account_id"`
	Asset           string          `db:"asset" json:"asset"`
	TransactionType string          `db:"transaction_type" json:"transaction_type"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	BalanceBefore   decimal.Decimal `db:"balance_before" json:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after" json:"balance_after"`
	OperationId     string          `db:"operation_id" json:"operation_id"`
	Reference       string          `db:"reference" json:"reference"`
	Status          string          `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// ClaimInstrument is the locally tracked view of a non-fungible claim token.
type ClaimInstrument struct {
	Id           string    `db:"id" json:"id"`
	Holder       string    `db:"holder" json:"holder"`
	CollectionId string    `db:"collection_id" json:"collection_id"`
	Name         string    `db:"name" json:"name"`
	Symbol       string    `db:"symbol" json:"symbol"`
	Uri          string    `db:"uri" json:"uri"`
	Verified     bool      `db:"verified" json:"verified"`
	Burned       bool      `db:"burned" json:"burned"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ClaimSpec describes a claim instrument to mint.
type ClaimSpec struct {
	ClaimTokenId string
	Holder       string
	CollectionId string
	Name         string
	Symbol       string
	Uri          string
}
