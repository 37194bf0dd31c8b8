package ledger

import (
	"context"
	"errors"
	"fmt"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Close destroys a fully converted option record and returns its storage
// allowance to receiver, which must be the protocol authority.
func (e *Engine) Close(ctx context.Context, req models.CloseRequest) error {
	err := e.run(ctx, opClose, req.ClaimTokenId, func(ctx context.Context, tx store.Tx) error {
		cfg, err := loadConfig(ctx, tx)
		if err != nil {
			return err
		}

		option, err := tx.LoadOption(ctx, req.ClaimTokenId)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOptionNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load option: %w", err)
		}
		if !option.Spent() {
			return ErrOptionNotFullyConverted
		}
		if !cfg.HasAuthority() {
			return ErrAuthorityNotSet
		}
		if req.Receiver != cfg.Authority {
			return ErrReceiverAuthorityMismatch
		}

		if err := e.collab.Storage.Reclaim(ctx, option.ClaimTokenId, req.Receiver, e.storageUnits); err != nil {
			return fmt.Errorf("failed to reclaim option storage: %w", err)
		}
		if err := tx.DeleteOption(ctx, option.ClaimTokenId); err != nil {
			return fmt.Errorf("failed to delete option: %w", err)
		}
		return e.appendEvent(ctx, tx, models.EventOptionClosed, option.ClaimTokenId, e.storageUnits,
			fmt.Sprintf("receiver=%s", req.Receiver))
	})
	if err != nil {
		return err
	}

	zap.L().Info("Option closed",
		zap.String("claim_token_id", req.ClaimTokenId),
		zap.String("receiver", req.Receiver),
		zap.Uint64("storage_units", e.storageUnits))
	return nil
}

// UpdateLocks overwrites the supplied lock flags. Only the protocol authority may call it.
func (e *Engine) UpdateLocks(ctx context.Context, caller string, update models.LockUpdate) (*models.ProtocolConfig, error) {
	var cfg *models.ProtocolConfig

	err := e.run(ctx, opUpdateLocks, caller, func(ctx context.Context, tx store.Tx) error {
		var err error
		cfg, err = loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		if !cfg.HasAuthority() {
			return ErrAuthorityNotSet
		}
		if caller != cfg.Authority {
			return ErrUnauthorized
		}

		if update.Locked != nil {
			cfg.Locked = *update.Locked
		}
		if update.DepositLocked != nil {
			cfg.DepositLocked = *update.DepositLocked
		}
		if update.ConvertLocked != nil {
			cfg.ConvertLocked = *update.ConvertLocked
		}
		cfg.UpdatedAt = e.now()

		if err := tx.SaveConfig(ctx, cfg); err != nil {
			return fmt.Errorf("failed to save protocol config: %w", err)
		}
		return e.appendEvent(ctx, tx, models.EventLocksUpdated, caller, 0,
			fmt.Sprintf("locked=%t deposit_locked=%t convert_locked=%t", cfg.Locked, cfg.DepositLocked, cfg.ConvertLocked))
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Locks updated",
		zap.String("authority", caller),
		zap.Bool("locked", cfg.Locked),
		zap.Bool("deposit_locked", cfg.DepositLocked),
		zap.Bool("convert_locked", cfg.ConvertLocked))
	return cfg, nil
}
