package ledger

import (
	"context"

	"note-option-ledger-go/internal/models"
)

// Collaborators perform the asset movements of an operation. Implementations
// must enlist in the unit of work carried by ctx so that their writes commit
// or roll back together with the ledger records.

// Custody takes deposited value into the protocol's custody account.
type Custody interface {
	Accept(ctx context.Context, from, custodyAccount string, amount uint64) error
}

// TokenIssuer mints, burns and moves fungible assets (notes and protocol tokens).
type TokenIssuer interface {
	Mint(ctx context.Context, asset, to string, amount uint64) error
	Burn(ctx context.Context, asset, from string, amount uint64) error
	Transfer(ctx context.Context, asset, from, to string, amount uint64) error
}

// ClaimInstruments manages the non-fungible instruments backing option records.
// VerifyPossession is the conversion capability check: it fails unless holder
// currently holds the instrument.
type ClaimInstruments interface {
	Mint(ctx context.Context, spec models.ClaimSpec) error
	VerifyCollection(ctx context.Context, claimTokenId, collectionId string) error
	VerifyPossession(ctx context.Context, claimTokenId, holder string) error
	Burn(ctx context.Context, claimTokenId, holder string) error
	Transfer(ctx context.Context, claimTokenId, from, to string) error
}

// StorageReclaimer returns the storage allowance held by a closed option to receiver.
type StorageReclaimer interface {
	Reclaim(ctx context.Context, claimTokenId, receiver string, units uint64) error
}

// Collaborators groups the external collaborators an Engine drives.
type Collaborators struct {
	Custody Custody
	Tokens  TokenIssuer
	Claims  ClaimInstruments
	Storage StorageReclaimer
}

func (c Collaborators) complete() bool {
	return c.Custody != nil && c.Tokens != nil && c.Claims != nil && c.Storage != nil
}
