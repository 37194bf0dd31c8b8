package ledger

import (
	"context"
	"errors"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"
	"note-option-ledger-go/internal/valuation"

	"go.uber.org/zap"
)

// Deposit takes value into custody, records a fresh receipt for the
// depositor and mints notes to the depositor and protocol tokens to custody.
func (e *Engine) Deposit(ctx context.Context, req models.DepositRequest) (*models.DepositResult, error) {
	var result *models.DepositResult
	var treasuryTotal uint64

	err := e.run(ctx, opDeposit, req.Depositor, func(ctx context.Context, tx store.Tx) error {
		cfg, err := loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Locked {
			return ErrProtocolLocked
		}
		if cfg.DepositLocked {
			return ErrDepositsLocked
		}
		if req.Depositor == "" {
			return ErrRequiredDepositor
		}
		if req.Amount == 0 {
			return ErrZeroAmount
		}
		if _, ok := e.durations[req.Duration]; !ok {
			return fmt.Errorf("%w: %d seconds", ErrInvalidDuration, req.Duration)
		}

		receipt, err := tx.LoadReceipt(ctx, req.Depositor)
		switch {
		case errors.Is(err, store.ErrNotFound):
			receipt = &models.DepositReceipt{Depositor: req.Depositor}
		case err != nil:
			return fmt.Errorf("failed to load receipt: %w", err)
		case receipt.Outstanding():
			return ErrReceiptPending
		}

		treasury, err := loadTreasury(ctx, tx)
		if err != nil {
			return err
		}

		now := e.now()
		nav, err := e.policy.Nav(ctx, valuation.Snapshot{TotalDeposited: treasury.TotalDeposited, Now: now.Unix()})
		if err != nil {
			return fmt.Errorf("failed to value deposit: %w", err)
		}
		tokens, err := valuation.TokensFor(req.Amount, nav)
		if errors.Is(err, valuation.ErrTokenOverflow) {
			return fmt.Errorf("%w: %w", ErrOverflow, err)
		}
		if err != nil {
			return fmt.Errorf("failed to value deposit: %w", err)
		}
		if tokens == 0 {
			return ErrZeroTokens
		}

		totalDeposited, err := checkedAdd(treasury.TotalDeposited, req.Amount)
		if err != nil {
			return fmt.Errorf("treasury total deposited: %w", err)
		}
		expiration, err := addSeconds(now.Unix(), req.Duration)
		if err != nil {
			return fmt.Errorf("receipt expiration: %w", err)
		}

		if err := e.collab.Custody.Accept(ctx, req.Depositor, e.custodyAccount, req.Amount); err != nil {
			return fmt.Errorf("custody failed to accept deposit: %w", err)
		}

		treasury.TotalDeposited = totalDeposited
		treasury.UpdatedAt = now
		if err := tx.SaveTreasury(ctx, treasury); err != nil {
			return fmt.Errorf("failed to save treasury: %w", err)
		}

		receipt.Initialized = true
		receipt.NftIssued = false
		receipt.Amount = tokens
		receipt.Expiration = expiration
		receipt.UpdatedAt = now
		if err := tx.SaveReceipt(ctx, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}

		if err := e.collab.Tokens.Mint(ctx, cfg.NoteAssetId, req.Depositor, tokens); err != nil {
			return fmt.Errorf("failed to mint notes: %w", err)
		}
		if err := e.collab.Tokens.Mint(ctx, cfg.TokenAssetId, e.custodyAccount, tokens); err != nil {
			return fmt.Errorf("failed to mint protocol tokens: %w", err)
		}

		if err := e.appendEvent(ctx, tx, models.EventDeposit, req.Depositor, req.Amount,
			fmt.Sprintf("tokens=%d nav=%s expiration=%d", tokens, nav.String(), expiration)); err != nil {
			return err
		}

		treasuryTotal = treasury.TotalDeposited
		result = &models.DepositResult{Receipt: receipt, TokensMinted: tokens, Nav: nav.String()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit recorded",
		zap.String("depositor", req.Depositor),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("tokens_minted", result.TokensMinted),
		zap.String("nav", result.Nav),
		zap.Int64("expiration", result.Receipt.Expiration))
	e.metrics.SetTotalDeposited(treasuryTotal)
	return result, nil
}
