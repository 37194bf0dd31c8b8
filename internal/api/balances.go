package api

import (
	"context"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

func optionFilter(spentOnly bool, owner string, limit int) store.OptionFilter {
	return store.OptionFilter{SpentOnly: spentOnly, Owner: owner, Limit: limit}
}

// GetAccountBalances returns all non-zero asset balances of an account
func (s *LedgerService) GetAccountBalances(ctx context.Context, accountId string) ([]models.AccountBalance, error) {
	if accountId == "" {
		return nil, fmt.Errorf("account_id is required")
	}

	balances, err := s.db.Subledger().GetAllBalances(ctx, accountId)
	if err != nil {
		zap.L().Error("Failed to get account balances", zap.String("account_id", accountId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances")
	}
	return balances, nil
}

// GetTransactionHistory returns paginated asset movements for an account and asset
func (s *LedgerService) GetTransactionHistory(ctx context.Context, accountId, asset string, limit, offset int) ([]models.Transaction, error) {
	if accountId == "" || asset == "" {
		return nil, fmt.Errorf("account_id and asset are required")
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	history, err := s.db.Subledger().GetTransactionHistory(ctx, accountId, asset, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get transaction history",
			zap.String("account_id", accountId),
			zap.String("asset", asset),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve transaction history")
	}
	return history, nil
}
