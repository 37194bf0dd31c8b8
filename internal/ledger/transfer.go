package ledger

import (
	"context"
	"errors"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

// TransferOption hands an open option to a new holder. The claim instrument
// moves first, so only its current holder can transfer it. Notes are moved
// in the same unit when requested. Locks do not apply.
func (e *Engine) TransferOption(ctx context.Context, req models.TransferRequest) (*models.OptionRecord, error) {
	var option *models.OptionRecord

	err := e.run(ctx, opTransfer, req.ClaimTokenId, func(ctx context.Context, tx store.Tx) error {
		if req.ClaimTokenId == "" {
			return ErrRequiredClaimToken
		}
		if req.From == "" {
			return ErrRequiredHolder
		}
		if req.To == "" {
			return ErrRequiredRecipient
		}
		if req.To == req.From {
			return ErrSelfTransfer
		}

		cfg, err := loadConfig(ctx, tx)
		if err != nil {
			return err
		}

		option, err = tx.LoadOption(ctx, req.ClaimTokenId)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOptionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load option: %w", err)
		}
		if option.Spent() {
			return ErrOptionSpent
		}

		if err := e.collab.Claims.Transfer(ctx, option.ClaimTokenId, req.From, req.To); err != nil {
			return fmt.Errorf("failed to transfer claim instrument: %w", err)
		}
		if req.Notes > 0 {
			if err := e.collab.Tokens.Transfer(ctx, cfg.NoteAssetId, req.From, req.To, req.Notes); err != nil {
				return fmt.Errorf("failed to transfer notes: %w", err)
			}
		}

		option.Owner = req.To
		option.UpdatedAt = e.now()
		if err := tx.SaveOption(ctx, option); err != nil {
			return fmt.Errorf("failed to save option: %w", err)
		}
		return e.appendEvent(ctx, tx, models.EventOptionTransferred, option.ClaimTokenId, req.Notes,
			fmt.Sprintf("from=%s to=%s", req.From, req.To))
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Option transferred",
		zap.String("claim_token_id", option.ClaimTokenId),
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Uint64("notes", req.Notes))
	return option, nil
}
