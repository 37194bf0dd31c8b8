package database

import (
	"context"
	"database/sql"
	"fmt"

	"note-option-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns current balance for account/asset (O(1) lookup)
func (s *SubledgerService) GetBalance(ctx context.Context, accountId, asset string) (decimal.Decimal, error) {
	zap.L().Debug("Getting balance", zap.String("account_id", accountId), zap.String("asset", asset))

	var balanceStr string
	err := s.reader(ctx).QueryRowContext(ctx, queryGetBalance, accountId, asset).Scan(&balanceStr)
	if err == sql.ErrNoRows {
		// No balance record means zero balance
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("account_id", accountId), zap.String("asset", asset), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		zap.L().Error("Failed to parse balance", zap.String("balance_str", balanceStr), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to parse balance: %w", err)
	}

	return balance, nil
}

// GetAllBalances returns all non-zero balances for an account
func (s *SubledgerService) GetAllBalances(ctx context.Context, accountId string) ([]models.AccountBalance, error) {
	zap.L().Debug("Getting all balances", zap.String("account_id", accountId))

	rows, err := s.reader(ctx).QueryContext(ctx, queryGetAllAccountBalances, accountId)
	if err != nil {
		zap.L().Error("Failed to get all balances", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("failed to get all balances: %w", err)
	}
	defer closeRows(rows)

	var balances []models.AccountBalance
	for rows.Next() {
		var balance models.AccountBalance
		var balanceStr string
		err := rows.Scan(&balance.Id, &balance.AccountId, &balance.Asset, &balanceStr,
			&balance.LastTransactionId, &balance.Version, &balance.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan balance: %w", err)
		}

		balance.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse balance '%s': %w", balanceStr, err)
		}

		balances = append(balances, balance)
	}

	// Check for errors during iteration
	if err := rows.Err(); err != nil {
		zap.L().Error("Error during balance row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating balance rows: %w", err)
	}

	return balances, nil
}

// ReconcileBalance verifies that current balance matches sum of all transactions
func (s *SubledgerService) ReconcileBalance(ctx context.Context, accountId, asset string) error {
	zap.L().Info("Reconciling balance", zap.String("account_id", accountId), zap.String("asset", asset))

	// Get current balance from account_balances table
	currentBalance, err := s.GetBalance(ctx, accountId, asset)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}

	// Amounts are TEXT, so sum them as decimals rather than with SQL SUM
	rows, err := s.reader(ctx).QueryContext(ctx, queryGetTransactionAmounts, accountId, asset)
	if err != nil {
		return fmt.Errorf("failed to calculate balance from transactions: %w", err)
	}
	defer closeRows(rows)

	calculatedBalance := decimal.Zero
	for rows.Next() {
		var amountStr string
		if err := rows.Scan(&amountStr); err != nil {
			return fmt.Errorf("failed to scan transaction amount: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return fmt.Errorf("failed to parse transaction amount '%s': %w", amountStr, err)
		}
		calculatedBalance = calculatedBalance.Add(amount)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating transaction rows: %w", err)
	}

	// Check if balances match (exact decimal comparison)
	if !currentBalance.Equal(calculatedBalance) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("account_id", accountId),
			zap.String("asset", asset),
			zap.String("current_balance", currentBalance.String()),
			zap.String("calculated_balance", calculatedBalance.String()),
			zap.String("difference", currentBalance.Sub(calculatedBalance).String()))
		return fmt.Errorf("balance mismatch: current=%s, calculated=%s", currentBalance.String(), calculatedBalance.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("account_id", accountId),
		zap.String("asset", asset),
		zap.String("balance", currentBalance.String()))
	return nil
}
