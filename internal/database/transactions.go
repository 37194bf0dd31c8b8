package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Subledger transaction types
const (
	TxCustodyDeposit = "custody_deposit"
	TxMint           = "mint"
	TxBurn           = "burn"
	TxTransferOut    = "transfer_out"
	TxTransferIn     = "transfer_in"
	TxStorageReclaim = "storage_reclaim"
)

// ProcessTransactionParams contains the parameters for processing a transaction
type ProcessTransactionParams struct {
	AccountId       string
	Asset           string
	TransactionType string
	Amount          decimal.Decimal
	IdempotencyKey  string
	Reference       string
	// RequireFunds rejects movements that would leave the balance negative.
	RequireFunds bool
}

// ProcessTransaction atomically updates balance and records transaction. It
// joins the transaction carried by ctx when there is one.
func (s *SubledgerService) ProcessTransaction(ctx context.Context, params ProcessTransactionParams) (*models.Transaction, error) {
	operationId := ""
	if oc := models.GetOperationContext(ctx); oc != nil {
		operationId = oc.OperationId
	}

	zap.L().Debug("Processing transaction",
		zap.String("account_id", params.AccountId),
		zap.String("asset", params.Asset),
		zap.String("type", params.TransactionType),
		zap.String("amount", params.Amount.String()),
		zap.String("operation_id", operationId))

	var transaction *models.Transaction
	err := s.inTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		transaction, err = s.processInTx(ctx, tx, params, operationId)
		return err
	})
	if err != nil {
		return nil, err
	}

	zap.L().Debug("Transaction processed successfully",
		zap.String("transaction_id", transaction.Id),
		zap.String("account_id", params.AccountId),
		zap.String("asset", params.Asset),
		zap.String("old_balance", transaction.BalanceBefore.String()),
		zap.String("new_balance", transaction.BalanceAfter.String()))
	return transaction, nil
}

func (s *SubledgerService) processInTx(ctx context.Context, tx *sql.Tx, params ProcessTransactionParams, operationId string) (*models.Transaction, error) {
	// Check for duplicate idempotency key
	var idempotencyKey sql.NullString
	if params.IdempotencyKey != "" {
		idempotencyKey = sql.NullString{String: params.IdempotencyKey, Valid: true}
		var existingTxId string
		err := tx.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.IdempotencyKey).Scan(&existingTxId)
		if err == nil {
			zap.L().Warn("Duplicate idempotency key detected, skipping",
				zap.String("idempotency_key", params.IdempotencyKey),
				zap.String("existing_internal_tx_id", existingTxId))
			return nil, fmt.Errorf("%w: idempotency key %s already exists", store.ErrDuplicateTransaction, params.IdempotencyKey)
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	// Get current balance
	var balanceId string
	var currentBalanceStr string
	var version int64

	err := tx.QueryRowContext(ctx, queryGetAccountBalance, params.AccountId, params.Asset).Scan(&balanceId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if err == sql.ErrNoRows {
		// Create new account balance record
		balanceId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		_, err = tx.ExecContext(ctx, queryInsertAccountBalance, balanceId, params.AccountId, params.Asset, "0", 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create account balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	// Calculate new balance
	newBalance := currentBalance.Add(params.Amount)
	if params.RequireFunds && newBalance.IsNegative() {
		return nil, fmt.Errorf("%w: %s holds %s %s, needs %s", store.ErrInsufficientBalance,
			params.AccountId, currentBalance.String(), params.Asset, params.Amount.Neg().String())
	}

	// Create transaction record
	transactionId := uuid.New().String()
	now := time.Now().UTC()
	transaction := &models.Transaction{}

	var amountStr, balanceBeforeStr, balanceAfterStr string
	err = tx.QueryRowContext(ctx, queryInsertTransaction,
		transactionId, params.AccountId, params.Asset, params.TransactionType,
		params.Amount.String(), currentBalance.String(), newBalance.String(),
		idempotencyKey, operationId, params.Reference, "confirmed", now).
		Scan(&transaction.Id, &transaction.AccountId, &transaction.Asset, &transaction.TransactionType,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&transaction.OperationId, &transaction.Reference,
			&transaction.Status, &transaction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	transaction.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned amount: %w", err)
	}
	transaction.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned balance_before: %w", err)
	}
	transaction.BalanceAfter, err = decimal.NewFromString(balanceAfterStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse returned balance_after: %w", err)
	}

	// Update account balance (with optimistic locking)
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transactionId, params.AccountId, params.Asset, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	return transaction, nil
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// contraAccount names the balancing side of each transaction type.
func contraAccount(transaction *models.Transaction) (string, string) {
	switch transaction.TransactionType {
	case TxCustodyDeposit:
		return "external_value", fmt.Sprintf("deposits_%s", transaction.Asset)
	case TxMint, TxBurn:
		return "issuance", fmt.Sprintf("supply_%s", transaction.Asset)
	case TxStorageReclaim:
		return "storage", models.StoragePoolAccount
	default:
		return "clearing", fmt.Sprintf("transfers_%s", transaction.Asset)
	}
}

// addJournalEntries creates double-entry bookkeeping entries
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.Transaction) error {
	// Inflow: debit the account's asset, credit the contra account
	// Outflow: credit the account's asset, debit the contra account
	accountId := fmt.Sprintf("%s_%s", transaction.AccountId, transaction.Asset)
	contraType, contraId := contraAccount(transaction)

	var entries []journalEntry
	if transaction.Amount.IsNegative() {
		amount := transaction.Amount.Neg()
		entries = []journalEntry{
			{"account_asset", accountId, decimal.Zero, amount},
			{contraType, contraId, amount, decimal.Zero},
		}
	} else {
		entries = []journalEntry{
			{"account_asset", accountId, transaction.Amount, decimal.Zero},
			{contraType, contraId, decimal.Zero, transaction.Amount},
		}
	}

	for _, entry := range entries {
		entryId := uuid.New().String()
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			entryId, transaction.Id, entry.accountType, entry.accountId, entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var transactions []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var amountStr, balanceBeforeStr, balanceAfterStr string
		err := rows.Scan(&tx.Id, &tx.AccountId, &tx.Asset, &tx.TransactionType,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&tx.OperationId, &tx.Reference, &tx.Status, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		tx.Amount, err = decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}

		tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance before '%s': %w", balanceBeforeStr, err)
		}

		tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance after '%s': %w", balanceAfterStr, err)
		}

		transactions = append(transactions, tx)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return transactions, nil
}

// GetTransactionHistory returns paginated transaction history for an account
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, accountId, asset string, limit, offset int) ([]models.Transaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("account_id", accountId),
		zap.String("asset", asset),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.reader(ctx).QueryContext(ctx, queryGetTransactionHistory, accountId, asset, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer closeRows(rows)

	return scanTransactions(rows)
}

// GetOperationTransactions returns every asset movement recorded by one ledger operation
func (s *SubledgerService) GetOperationTransactions(ctx context.Context, operationId string) ([]models.Transaction, error) {
	rows, err := s.reader(ctx).QueryContext(ctx, queryGetOperationTransactions, operationId)
	if err != nil {
		return nil, fmt.Errorf("failed to get operation transactions: %w", err)
	}
	defer closeRows(rows)

	return scanTransactions(rows)
}
