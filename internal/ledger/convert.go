package ledger

import (
	"context"
	"errors"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Convert burns notes from the holder and releases the same amount of
// protocol tokens from custody. Converting the whole remaining amount also
// retires the claim instrument and removes the option from the active count.
func (e *Engine) Convert(ctx context.Context, req models.ConvertRequest) (*models.ConvertResult, error) {
	var result *models.ConvertResult
	var cfg *models.ProtocolConfig

	err := e.run(ctx, opConvert, req.ClaimTokenId, func(ctx context.Context, tx store.Tx) error {
		var err error
		cfg, err = loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if cfg.Locked {
			return ErrProtocolLocked
		}
		if cfg.ConvertLocked {
			return ErrConversionsLocked
		}

		option, err := tx.LoadOption(ctx, req.ClaimTokenId)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOptionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load option: %w", err)
		}

		now := e.now()
		if option.Expired(now.Unix()) {
			return ErrOptionExpired
		}
		if req.Amount == 0 {
			return ErrZeroAmount
		}
		if req.Amount > option.Amount {
			return ErrInsufficientOptionAmount
		}

		holder := req.Holder
		if holder == "" {
			holder = option.Owner
		}
		if err := e.collab.Claims.VerifyPossession(ctx, option.ClaimTokenId, holder); err != nil {
			return fmt.Errorf("claim possession check failed: %w", err)
		}

		full := req.Amount == option.Amount

		if err := e.collab.Tokens.Burn(ctx, cfg.NoteAssetId, holder, req.Amount); err != nil {
			return fmt.Errorf("failed to burn notes: %w", err)
		}
		if err := e.collab.Tokens.Transfer(ctx, cfg.TokenAssetId, e.custodyAccount, holder, req.Amount); err != nil {
			return fmt.Errorf("failed to release protocol tokens: %w", err)
		}

		option.Amount, err = checkedSub(option.Amount, req.Amount)
		if err != nil {
			return fmt.Errorf("option amount: %w", err)
		}
		option.UpdatedAt = now

		if cfg.TotalOptionAmount < req.Amount {
			return fmt.Errorf("%w: total=%d converted=%d", ErrInsufficientTotalOptionAmount, cfg.TotalOptionAmount, req.Amount)
		}
		cfg.TotalOptionAmount -= req.Amount

		kind := models.EventConvertPartial
		if full {
			kind = models.EventConvertFull
			if err := e.collab.Claims.Burn(ctx, option.ClaimTokenId, holder); err != nil {
				return fmt.Errorf("failed to burn claim instrument: %w", err)
			}
			var clamped bool
			cfg.OptionCount, clamped = saturatingDec(cfg.OptionCount)
			if clamped {
				zap.L().Warn("Option count already zero on full conversion",
					zap.String("claim_token_id", option.ClaimTokenId))
			}
		}
		cfg.UpdatedAt = now

		if err := tx.SaveOption(ctx, option); err != nil {
			return fmt.Errorf("failed to save option: %w", err)
		}
		if err := tx.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("failed to save protocol config: %w", err)
		}
		if err := e.appendEvent(ctx, tx, kind, option.ClaimTokenId, req.Amount,
			fmt.Sprintf("holder=%s remaining=%d", holder, option.Amount)); err != nil {
			return err
		}

		result = &models.ConvertResult{
			Option:            option,
			Converted:         req.Amount,
			Full:              full,
			OptionCount:       cfg.OptionCount,
			TotalOptionAmount: cfg.TotalOptionAmount,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Option converted",
		zap.String("claim_token_id", result.Option.ClaimTokenId),
		zap.Uint64("converted", result.Converted),
		zap.Uint64("remaining", result.Option.Amount),
		zap.Bool("full", result.Full),
		zap.Uint64("option_count", result.OptionCount),
		zap.Uint64("total_option_amount", result.TotalOptionAmount))
	e.publishConfig(cfg)
	return result, nil
}
