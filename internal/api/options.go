/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package api

import (
	"context"

	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Deposit accepts value from a depositor and records a pending receipt
func (s *LedgerService) Deposit(ctx context.Context, req models.DepositRequest) (*models.DepositResult, error) {
	zap.L().Info("Processing deposit",
		zap.String("depositor", req.Depositor),
		zap.Uint64("amount", req.Amount),
		zap.Uint32("option_duration", req.Duration))

	result, err := s.engine.Deposit(ctx, req)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit accepted",
		zap.String("depositor", req.Depositor),
		zap.Uint64("tokens_minted", result.TokensMinted),
		zap.String("nav", result.Nav),
		zap.Int64("expiration", result.Receipt.Expiration))
	return result, nil
}

// IssueOption materializes the depositor's pending receipt. A missing claim
// token id gets a fresh one.
func (s *LedgerService) IssueOption(ctx context.Context, req models.IssueOptionRequest) (*models.OptionRecord, error) {
	if req.ClaimTokenId == "" {
		req.ClaimTokenId = uuid.New().String()
	}

	zap.L().Info("Issuing option",
		zap.String("depositor", req.Depositor),
		zap.String("claim_token_id", req.ClaimTokenId))

	return s.engine.IssueOption(ctx, req)
}

// Convert turns part or all of an option into protocol tokens
func (s *LedgerService) Convert(ctx context.Context, req models.ConvertRequest) (*models.ConvertResult, error) {
	zap.L().Info("Processing conversion",
		zap.String("claim_token_id", req.ClaimTokenId),
		zap.String("holder", req.Holder),
		zap.Uint64("amount", req.Amount))

	result, err := s.engine.Convert(ctx, req)
	if err != nil {
		return nil, err
	}

	if result.Full {
		zap.L().Info("Option fully converted",
			zap.String("claim_token_id", req.ClaimTokenId),
			zap.Uint64("option_count", result.OptionCount))
	}
	return result, nil
}

// TransferOption hands an open option, and optionally notes, to a new holder
func (s *LedgerService) TransferOption(ctx context.Context, req models.TransferRequest) (*models.OptionRecord, error) {
	zap.L().Info("Transferring option",
		zap.String("claim_token_id", req.ClaimTokenId),
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Uint64("notes", req.Notes))
	return s.engine.TransferOption(ctx, req)
}

// CloseOption reclaims the storage of a fully converted option
func (s *LedgerService) CloseOption(ctx context.Context, req models.CloseRequest) error {
	zap.L().Info("Closing option",
		zap.String("claim_token_id", req.ClaimTokenId),
		zap.String("receiver", req.Receiver))
	return s.engine.Close(ctx, req)
}

// UpdateLocks changes lock flags on behalf of caller
func (s *LedgerService) UpdateLocks(ctx context.Context, caller string, update models.LockUpdate) (*models.ProtocolConfig, error) {
	if update.Empty() {
		zap.L().Info("Lock update carries no flags", zap.String("caller", caller))
	}
	return s.engine.UpdateLocks(ctx, caller, update)
}

// ListOptions returns option records, optionally only the spent ones or one owner's
func (s *LedgerService) ListOptions(ctx context.Context, spentOnly bool, owner string, limit int) ([]models.OptionRecord, error) {
	if limit < 0 || limit > 500 {
		limit = 100
	}
	return s.engine.ListOptions(ctx, optionFilter(spentOnly, owner, limit))
}

func (s *LedgerService) GetOption(ctx context.Context, claimTokenId string) (*models.OptionRecord, error) {
	return s.engine.GetOption(ctx, claimTokenId)
}

func (s *LedgerService) GetReceipt(ctx context.Context, depositor string) (*models.DepositReceipt, error) {
	return s.engine.GetReceipt(ctx, depositor)
}

func (s *LedgerService) ListStaleReceipts(ctx context.Context) ([]models.DepositReceipt, error) {
	return s.engine.ListStaleReceipts(ctx)
}

func (s *LedgerService) GetConfig(ctx context.Context) (*models.ProtocolConfig, error) {
	return s.engine.GetConfig(ctx)
}

func (s *LedgerService) GetTreasury(ctx context.Context) (*models.Treasury, error) {
	return s.engine.GetTreasury(ctx)
}

// Reconcile compares the option counters with the option records. A
// mismatch is returned together with the result.
func (s *LedgerService) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	result, err := s.engine.Reconcile(ctx)
	if err != nil && ledger.IsInconsistency(err) {
		zap.L().Error("Option counters do not match records", zap.Error(err))
	}
	return result, err
}

func (s *LedgerService) ListEvents(ctx context.Context, subject string, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.engine.ListEvents(ctx, subject, limit)
}
