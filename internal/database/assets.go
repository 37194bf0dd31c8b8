package database

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"note-option-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Assets moves notes, protocol tokens, custody value and storage allowance
// through the subledger. Each movement is one subledger transaction and joins
// the unit of work carried by ctx.
type Assets struct {
	subledger *SubledgerService
}

func NewAssets(subledger *SubledgerService) *Assets {
	return &Assets{subledger: subledger}
}

// decimalFromUint64 keeps the full uint64 range, which int64 cannot.
func decimalFromUint64(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), 0)
}

// legKey identifies one movement of a ledger operation. Movements made
// outside an operation carry no key.
func legKey(ctx context.Context, account, asset, txType string) string {
	oc := models.GetOperationContext(ctx)
	if oc == nil || oc.OperationId == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s:%s", oc.OperationId, txType, asset, account)
}

func (a *Assets) credit(ctx context.Context, account, asset, txType, reference string, amount uint64) error {
	_, err := a.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		AccountId:       account,
		Asset:           asset,
		TransactionType: txType,
		Amount:          decimalFromUint64(amount),
		IdempotencyKey:  legKey(ctx, account, asset, txType),
		Reference:       reference,
	})
	if err != nil {
		return fmt.Errorf("failed to credit %s %s: %w", account, asset, err)
	}
	return nil
}

func (a *Assets) debit(ctx context.Context, account, asset, txType, reference string, amount uint64) error {
	_, err := a.subledger.ProcessTransaction(ctx, ProcessTransactionParams{
		AccountId:       account,
		Asset:           asset,
		TransactionType: txType,
		Amount:          decimalFromUint64(amount).Neg(),
		IdempotencyKey:  legKey(ctx, account, asset, txType),
		Reference:       reference,
		RequireFunds:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to debit %s %s: %w", account, asset, err)
	}
	return nil
}

// Accept credits the deposited native value to the custody account.
func (a *Assets) Accept(ctx context.Context, from, custodyAccount string, amount uint64) error {
	return a.credit(ctx, custodyAccount, models.NativeAsset, TxCustodyDeposit, from, amount)
}

func (a *Assets) Mint(ctx context.Context, asset, to string, amount uint64) error {
	return a.credit(ctx, to, asset, TxMint, "", amount)
}

func (a *Assets) Burn(ctx context.Context, asset, from string, amount uint64) error {
	return a.debit(ctx, from, asset, TxBurn, "", amount)
}

func (a *Assets) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	return a.subledger.inTx(ctx, func(ctx context.Context, _ *sql.Tx) error {
		if err := a.debit(ctx, from, asset, TxTransferOut, to, amount); err != nil {
			return err
		}
		return a.credit(ctx, to, asset, TxTransferIn, from, amount)
	})
}

// Reclaim credits the storage allowance held by a closed option to receiver.
func (a *Assets) Reclaim(ctx context.Context, claimTokenId, receiver string, units uint64) error {
	return a.credit(ctx, receiver, models.StorageAsset, TxStorageReclaim, claimTokenId, units)
}
