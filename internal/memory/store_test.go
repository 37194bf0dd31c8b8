package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/stretchr/testify/require"
)

func TestAtomicallyDiscardsFailedUnit(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertConfig(ctx, &models.ProtocolConfig{NoteAssetId: "CN", TokenAssetId: "PT"})
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg, err := tx.LoadConfig(ctx)
		require.NoError(t, err)
		cfg.OptionCount = 7
		require.NoError(t, tx.SaveConfig(ctx, cfg))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "alice", Initialized: true, Amount: 5}))
		require.NoError(t, NewAssets().Mint(ctx, "CN", "alice", 5))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg, err := tx.LoadConfig(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(0), cfg.OptionCount)
		require.Equal(t, int64(1), cfg.Version)

		_, err = tx.LoadReceipt(ctx, "alice")
		require.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), st.Balance("alice", "CN"))
}

func TestAtomicallyJoinsOuterUnit(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertTreasury(ctx, &models.Treasury{}))
		return st.Atomically(ctx, func(ctx context.Context, inner store.Tx) error {
			treasury, err := inner.LoadTreasury(ctx)
			require.NoError(t, err)
			treasury.TotalDeposited = 10
			return inner.SaveTreasury(ctx, treasury)
		})
	})
	require.NoError(t, err)

	err = st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		treasury, err := tx.LoadTreasury(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(10), treasury.TotalDeposited)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveConfigDetectsStaleVersion(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertConfig(ctx, &models.ProtocolConfig{}))
		first, err := tx.LoadConfig(ctx)
		require.NoError(t, err)
		second, err := tx.LoadConfig(ctx)
		require.NoError(t, err)

		require.NoError(t, tx.SaveConfig(ctx, first))
		return tx.SaveConfig(ctx, second)
	})
	require.ErrorIs(t, err, store.ErrConcurrentModification)
}

func TestListOptionsFiltersAndOrders(t *testing.T) {
	st := NewStore()
	ctx := context.Background()
	t0 := time.Unix(1_700_000_000, 0).UTC()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertOption(ctx, &models.OptionRecord{ClaimTokenId: "b", Owner: "alice", Amount: 0, CreatedAt: t0.Add(time.Second)}))
		require.NoError(t, tx.InsertOption(ctx, &models.OptionRecord{ClaimTokenId: "a", Owner: "bob", Amount: 5, CreatedAt: t0}))
		require.NoError(t, tx.InsertOption(ctx, &models.OptionRecord{ClaimTokenId: "c", Owner: "alice", Amount: 9, CreatedAt: t0.Add(2 * time.Second)}))
		require.ErrorIs(t, tx.InsertOption(ctx, &models.OptionRecord{ClaimTokenId: "a"}), store.ErrAlreadyExists)

		all, err := tx.ListOptions(ctx, store.OptionFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "a", all[0].ClaimTokenId)
		require.Equal(t, "c", all[2].ClaimTokenId)

		spent, err := tx.ListOptions(ctx, store.OptionFilter{SpentOnly: true})
		require.NoError(t, err)
		require.Len(t, spent, 1)
		require.Equal(t, "b", spent[0].ClaimTokenId)

		owned, err := tx.ListOptions(ctx, store.OptionFilter{Owner: "alice", Limit: 1})
		require.NoError(t, err)
		require.Len(t, owned, 1)
		require.Equal(t, "b", owned[0].ClaimTokenId)

		require.NoError(t, tx.DeleteOption(ctx, "b"))
		require.ErrorIs(t, tx.DeleteOption(ctx, "b"), store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestListStaleReceipts(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "alice", Initialized: true, Expiration: 100}))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "bob", Initialized: true, Expiration: 300}))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "carol", NftIssued: true, Expiration: 50}))

		stale, err := tx.ListStaleReceipts(ctx, 200)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		require.Equal(t, "alice", stale[0].Depositor)

		stale, err = tx.ListStaleReceipts(ctx, 100)
		require.NoError(t, err)
		require.Empty(t, stale)
		return nil
	})
	require.NoError(t, err)
}

func TestListEventsNewestFirst(t *testing.T) {
	st := NewStore()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, id := range []string{"1", "2", "3"} {
			require.NoError(t, tx.AppendEvent(ctx, &models.LedgerEvent{Id: id, Subject: "opt"}))
		}
		require.NoError(t, tx.AppendEvent(ctx, &models.LedgerEvent{Id: "4", Subject: "other"}))

		events, err := tx.ListEvents(ctx, "opt", 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "3", events[0].Id)
		require.Equal(t, "2", events[1].Id)
		return nil
	})
	require.NoError(t, err)
}

func TestAssetsRequireActiveUnit(t *testing.T) {
	err := NewAssets().Mint(context.Background(), "CN", "alice", 1)
	require.ErrorIs(t, err, ErrNoActiveUnit)

	err = NewClaims().VerifyPossession(context.Background(), "claim", "alice")
	require.ErrorIs(t, err, ErrNoActiveUnit)
}

func TestAssetsMovements(t *testing.T) {
	st := NewStore()
	assets := NewAssets()
	claims := NewClaims()
	ctx := context.Background()

	err := st.Atomically(ctx, func(ctx context.Context, _ store.Tx) error {
		require.NoError(t, assets.Mint(ctx, "PT", "custody", 10))
		require.NoError(t, assets.Transfer(ctx, "PT", "custody", "alice", 4))
		require.ErrorIs(t, assets.Burn(ctx, "PT", "alice", 5), store.ErrInsufficientBalance)
		require.NoError(t, assets.Burn(ctx, "PT", "alice", 1))

		require.NoError(t, claims.Mint(ctx, models.ClaimSpec{ClaimTokenId: "claim", Holder: "alice", CollectionId: "col"}))
		require.ErrorIs(t, claims.VerifyCollection(ctx, "claim", "other"), ErrClaimCollection)
		require.NoError(t, claims.VerifyCollection(ctx, "claim", "col"))
		require.ErrorIs(t, claims.VerifyPossession(ctx, "claim", "bob"), ErrClaimNotHeld)
		require.NoError(t, claims.Transfer(ctx, "claim", "alice", "bob"))
		require.NoError(t, claims.Burn(ctx, "claim", "bob"))
		require.ErrorIs(t, claims.VerifyPossession(ctx, "claim", "bob"), ErrClaimBurned)
		return nil
	})
	require.NoError(t, err)

	require.Equal(t, uint64(6), st.Balance("custody", "PT"))
	require.Equal(t, uint64(3), st.Balance("alice", "PT"))
	claim, ok := st.Claim("claim")
	require.True(t, ok)
	require.True(t, claim.Verified)
	require.True(t, claim.Burned)
	require.Equal(t, "bob", claim.Holder)
}
