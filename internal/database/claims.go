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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

var (
	ErrClaimNotFound   = errors.New("claim instrument not found")
	ErrClaimBurned     = errors.New("claim instrument already burned")
	ErrClaimNotHeld    = fmt.Errorf("claim instrument: %w", store.ErrNotHeld)
	ErrClaimCollection = errors.New("claim instrument belongs to another collection")
)

// ClaimRegistry tracks claim instruments in the claim_instruments table.
type ClaimRegistry struct {
	db *sql.DB
}

func NewClaimRegistry(db *sql.DB) *ClaimRegistry {
	return &ClaimRegistry{db: db}
}

func (r *ClaimRegistry) q(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func (r *ClaimRegistry) Mint(ctx context.Context, spec models.ClaimSpec) error {
	_, err := r.q(ctx).ExecContext(ctx, queryInsertClaim,
		spec.ClaimTokenId, spec.Holder, spec.CollectionId, spec.Name, spec.Symbol, spec.Uri, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: claim instrument %s", store.ErrAlreadyExists, spec.ClaimTokenId)
		}
		return fmt.Errorf("failed to mint claim instrument: %w", err)
	}

	zap.L().Debug("Claim instrument minted",
		zap.String("claim_token_id", spec.ClaimTokenId),
		zap.String("holder", spec.Holder),
		zap.String("uri", spec.Uri))
	return nil
}

// Get returns the claim instrument with the given id.
func (r *ClaimRegistry) Get(ctx context.Context, claimTokenId string) (*models.ClaimInstrument, error) {
	claim := &models.ClaimInstrument{}
	err := r.q(ctx).QueryRowContext(ctx, queryGetClaim, claimTokenId).Scan(
		&claim.Id, &claim.Holder, &claim.CollectionId, &claim.Name, &claim.Symbol,
		&claim.Uri, &claim.Verified, &claim.Burned, &claim.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrClaimNotFound, claimTokenId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get claim instrument: %w", err)
	}
	return claim, nil
}

func (r *ClaimRegistry) VerifyCollection(ctx context.Context, claimTokenId, collectionId string) error {
	claim, err := r.Get(ctx, claimTokenId)
	if err != nil {
		return err
	}
	if claim.CollectionId != collectionId {
		return fmt.Errorf("%w: %s is in %s, expected %s", ErrClaimCollection, claimTokenId, claim.CollectionId, collectionId)
	}
	if _, err := r.q(ctx).ExecContext(ctx, queryVerifyClaim, claimTokenId); err != nil {
		return fmt.Errorf("failed to verify claim instrument: %w", err)
	}
	return nil
}

func (r *ClaimRegistry) VerifyPossession(ctx context.Context, claimTokenId, holder string) error {
	claim, err := r.Get(ctx, claimTokenId)
	if err != nil {
		return err
	}
	if claim.Burned {
		return fmt.Errorf("%w: %s", ErrClaimBurned, claimTokenId)
	}
	if claim.Holder != holder {
		return fmt.Errorf("%w: %s", ErrClaimNotHeld, holder)
	}
	return nil
}

func (r *ClaimRegistry) Burn(ctx context.Context, claimTokenId, holder string) error {
	if err := r.VerifyPossession(ctx, claimTokenId, holder); err != nil {
		return err
	}
	result, err := r.q(ctx).ExecContext(ctx, queryBurnClaim, claimTokenId)
	if err != nil {
		return fmt.Errorf("failed to burn claim instrument: %w", err)
	}
	return claimRowAffected(result, ErrClaimBurned)
}

// Transfer hands a claim instrument to a new holder.
func (r *ClaimRegistry) Transfer(ctx context.Context, claimTokenId, from, to string) error {
	if err := r.VerifyPossession(ctx, claimTokenId, from); err != nil {
		return err
	}
	result, err := r.q(ctx).ExecContext(ctx, queryTransferClaim, to, claimTokenId, from)
	if err != nil {
		return fmt.Errorf("failed to transfer claim instrument: %w", err)
	}
	return claimRowAffected(result, ErrClaimNotHeld)
}

func claimRowAffected(result sql.Result, notAffected error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notAffected
	}
	return nil
}
