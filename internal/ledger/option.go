package ledger

import (
	"context"
	"errors"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

// IssueOption consumes the depositor's outstanding receipt into an option
// record backed by a freshly minted claim instrument.
func (e *Engine) IssueOption(ctx context.Context, req models.IssueOptionRequest) (*models.OptionRecord, error) {
	var option *models.OptionRecord
	var cfg *models.ProtocolConfig

	err := e.run(ctx, opIssueOption, req.ClaimTokenId, func(ctx context.Context, tx store.Tx) error {
		if req.Depositor == "" {
			return ErrRequiredDepositor
		}
		if req.ClaimTokenId == "" {
			return ErrRequiredClaimToken
		}

		var err error
		cfg, err = loadConfig(ctx, tx)
		if err != nil {
			return err
		}

		receipt, err := tx.LoadReceipt(ctx, req.Depositor)
		if errors.Is(err, store.ErrNotFound) {
			return ErrReceiptNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load receipt: %w", err)
		}
		if !receipt.Initialized {
			return ErrReceiptConsumed
		}

		now := e.now()
		if now.Unix() > receipt.Expiration {
			return ErrReceiptExpired
		}

		_, err = tx.LoadOption(ctx, req.ClaimTokenId)
		if err == nil {
			return ErrOptionExists
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load option: %w", err)
		}

		cfg.OptionCount, err = checkedAdd(cfg.OptionCount, 1)
		if err != nil {
			return fmt.Errorf("option count: %w", err)
		}
		cfg.TotalOptionAmount, err = checkedAdd(cfg.TotalOptionAmount, receipt.Amount)
		if err != nil {
			return fmt.Errorf("total option amount: %w", err)
		}
		cfg.UpdatedAt = now

		option = &models.OptionRecord{
			ClaimTokenId:   req.ClaimTokenId,
			Owner:          req.Depositor,
			Amount:         receipt.Amount,
			OriginalAmount: receipt.Amount,
			Expiration:     receipt.Expiration,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := tx.InsertOption(ctx, option); err != nil {
			return fmt.Errorf("failed to insert option: %w", err)
		}
		if err := tx.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("failed to save protocol config: %w", err)
		}

		receipt.Initialized = false
		receipt.NftIssued = true
		receipt.UpdatedAt = now
		if err := tx.SaveReceipt(ctx, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}

		spec := models.ClaimSpec{
			ClaimTokenId: req.ClaimTokenId,
			Holder:       req.Depositor,
			CollectionId: cfg.CollectionId,
			Name:         e.claim.Name,
			Symbol:       e.claim.Symbol,
			Uri:          e.claimUri(option.Amount, option.Expiration),
		}
		if err := e.collab.Claims.Mint(ctx, spec); err != nil {
			return fmt.Errorf("failed to mint claim instrument: %w", err)
		}
		if err := e.collab.Claims.VerifyCollection(ctx, req.ClaimTokenId, cfg.CollectionId); err != nil {
			return fmt.Errorf("failed to verify claim collection: %w", err)
		}

		return e.appendEvent(ctx, tx, models.EventOptionIssued, req.ClaimTokenId, option.Amount,
			fmt.Sprintf("owner=%s expiration=%d", option.Owner, option.Expiration))
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Option issued",
		zap.String("claim_token_id", option.ClaimTokenId),
		zap.String("owner", option.Owner),
		zap.Uint64("amount", option.Amount),
		zap.Int64("expiration", option.Expiration),
		zap.Uint64("option_count", cfg.OptionCount),
		zap.Uint64("total_option_amount", cfg.TotalOptionAmount))
	e.publishConfig(cfg)
	return option, nil
}
