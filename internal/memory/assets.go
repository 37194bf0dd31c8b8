package memory

import (
	"context"
	"errors"
	"fmt"
	"math/bits"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"
)

var (
	ErrNoActiveUnit    = errors.New("memory assets: no active unit of work in context")
	ErrClaimNotFound   = errors.New("memory assets: claim instrument not found")
	ErrClaimBurned     = errors.New("memory assets: claim instrument already burned")
	ErrClaimNotHeld    = fmt.Errorf("memory assets: claim instrument: %w", store.ErrNotHeld)
	ErrClaimCollection = errors.New("memory assets: claim instrument belongs to another collection")
	ErrBalanceOverflow = errors.New("memory assets: balance overflow")
)

// Assets keeps fungible balances in the same state as the ledger records.
// Every method must run inside Store.Atomically.
type Assets struct{}

func NewAssets() *Assets { return &Assets{} }

func (a *Assets) unit(ctx context.Context) (*state, error) {
	s := unitFromContext(ctx)
	if s == nil {
		return nil, ErrNoActiveUnit
	}
	return s, nil
}

func credit(s *state, account, asset string, amount uint64) error {
	key := balanceKey{account: account, asset: asset}
	sum, carry := bits.Add64(s.balances[key], amount, 0)
	if carry != 0 {
		return fmt.Errorf("%w: %s %s", ErrBalanceOverflow, account, asset)
	}
	s.balances[key] = sum
	return nil
}

func debit(s *state, account, asset string, amount uint64) error {
	key := balanceKey{account: account, asset: asset}
	if s.balances[key] < amount {
		return fmt.Errorf("%w: %s holds %d %s, needs %d", store.ErrInsufficientBalance, account, s.balances[key], asset, amount)
	}
	s.balances[key] -= amount
	return nil
}

func (a *Assets) Accept(ctx context.Context, _, custodyAccount string, amount uint64) error {
	s, err := a.unit(ctx)
	if err != nil {
		return err
	}
	return credit(s, custodyAccount, models.NativeAsset, amount)
}

func (a *Assets) Mint(ctx context.Context, asset, to string, amount uint64) error {
	s, err := a.unit(ctx)
	if err != nil {
		return err
	}
	return credit(s, to, asset, amount)
}

func (a *Assets) Burn(ctx context.Context, asset, from string, amount uint64) error {
	s, err := a.unit(ctx)
	if err != nil {
		return err
	}
	return debit(s, from, asset, amount)
}

func (a *Assets) Transfer(ctx context.Context, asset, from, to string, amount uint64) error {
	s, err := a.unit(ctx)
	if err != nil {
		return err
	}
	if err := debit(s, from, asset, amount); err != nil {
		return err
	}
	return credit(s, to, asset, amount)
}

func (a *Assets) Reclaim(ctx context.Context, _, receiver string, units uint64) error {
	s, err := a.unit(ctx)
	if err != nil {
		return err
	}
	return credit(s, receiver, models.StorageAsset, units)
}

// Claims tracks claim instruments in the same state as the ledger records.
type Claims struct{}

func NewClaims() *Claims { return &Claims{} }

func (c *Claims) Mint(ctx context.Context, spec models.ClaimSpec) error {
	s := unitFromContext(ctx)
	if s == nil {
		return ErrNoActiveUnit
	}
	if _, ok := s.claims[spec.ClaimTokenId]; ok {
		return fmt.Errorf("%w: claim instrument %s", store.ErrAlreadyExists, spec.ClaimTokenId)
	}
	s.claims[spec.ClaimTokenId] = models.ClaimInstrument{
		Id:           spec.ClaimTokenId,
		Holder:       spec.Holder,
		CollectionId: spec.CollectionId,
		Name:         spec.Name,
		Symbol:       spec.Symbol,
		Uri:          spec.Uri,
	}
	return nil
}

func (c *Claims) VerifyCollection(ctx context.Context, claimTokenId, collectionId string) error {
	s := unitFromContext(ctx)
	if s == nil {
		return ErrNoActiveUnit
	}
	claim, ok := s.claims[claimTokenId]
	if !ok {
		return ErrClaimNotFound
	}
	if claim.CollectionId != collectionId {
		return ErrClaimCollection
	}
	claim.Verified = true
	s.claims[claimTokenId] = claim
	return nil
}

func (c *Claims) VerifyPossession(ctx context.Context, claimTokenId, holder string) error {
	s := unitFromContext(ctx)
	if s == nil {
		return ErrNoActiveUnit
	}
	claim, ok := s.claims[claimTokenId]
	if !ok {
		return ErrClaimNotFound
	}
	if claim.Burned {
		return ErrClaimBurned
	}
	if claim.Holder != holder {
		return ErrClaimNotHeld
	}
	return nil
}

func (c *Claims) Burn(ctx context.Context, claimTokenId, holder string) error {
	if err := c.VerifyPossession(ctx, claimTokenId, holder); err != nil {
		return err
	}
	s := unitFromContext(ctx)
	claim := s.claims[claimTokenId]
	claim.Burned = true
	s.claims[claimTokenId] = claim
	return nil
}

// Transfer hands a claim instrument to a new holder.
func (c *Claims) Transfer(ctx context.Context, claimTokenId, from, to string) error {
	if err := c.VerifyPossession(ctx, claimTokenId, from); err != nil {
		return err
	}
	s := unitFromContext(ctx)
	claim := s.claims[claimTokenId]
	claim.Holder = to
	s.claims[claimTokenId] = claim
	return nil
}
