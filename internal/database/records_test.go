package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/stretchr/testify/require"
)

func TestRecordsRoundTrip(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	fee := uint16(25)
	now := time.Unix(1_700_000_000, 0).UTC()

	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg := &models.ProtocolConfig{
			Authority:         "admin",
			NoteAssetId:       "CN",
			TokenAssetId:      "PT",
			CollectionId:      "zoptions",
			FeeBps:            &fee,
			TotalOptionAmount: ^uint64(0),
			UpdatedAt:         now,
		}
		require.NoError(t, tx.InsertConfig(ctx, cfg))
		require.Equal(t, int64(1), cfg.Version)
		require.NoError(t, tx.InsertTreasury(ctx, &models.Treasury{Authority: "admin", UpdatedAt: now}))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{
			Depositor: "alice", Initialized: true, Amount: 1000, Expiration: 1_707_776_000, UpdatedAt: now,
		}))
		return tx.InsertOption(ctx, &models.OptionRecord{
			ClaimTokenId: "claim-1", Owner: "alice", Amount: 1000, OriginalAmount: 1000,
			Expiration: 1_707_776_000, CreatedAt: now, UpdatedAt: now,
		})
	})
	require.NoError(t, err)

	err = service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg, err := tx.LoadConfig(ctx)
		require.NoError(t, err)
		require.Equal(t, "admin", cfg.Authority)
		require.NotNil(t, cfg.FeeBps)
		require.Equal(t, uint16(25), *cfg.FeeBps)
		require.Equal(t, ^uint64(0), cfg.TotalOptionAmount)

		receipt, err := tx.LoadReceipt(ctx, "alice")
		require.NoError(t, err)
		require.True(t, receipt.Initialized)
		require.Equal(t, uint64(1000), receipt.Amount)

		option, err := tx.LoadOption(ctx, "claim-1")
		require.NoError(t, err)
		require.Equal(t, "alice", option.Owner)
		require.Equal(t, int64(1_707_776_000), option.Expiration)

		_, err = tx.LoadOption(ctx, "claim-2")
		require.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestInsertConfigTwice(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	insert := func(ctx context.Context, tx store.Tx) error {
		return tx.InsertConfig(ctx, &models.ProtocolConfig{NoteAssetId: "CN", TokenAssetId: "PT"})
	}
	require.NoError(t, service.Atomically(ctx, insert))
	require.ErrorIs(t, service.Atomically(ctx, insert), store.ErrAlreadyExists)
}

func TestAtomicallyRollsBackRecordsAndAssets(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	boom := errors.New("boom")

	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "alice", Initialized: true, Amount: 5}))
		require.NoError(t, service.Assets().Mint(ctx, "CN", "alice", 5))
		require.NoError(t, service.Claims().Mint(ctx, models.ClaimSpec{ClaimTokenId: "claim-1", Holder: "alice", CollectionId: "zoptions"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.LoadReceipt(ctx, "alice")
		require.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)

	balance, err := service.Subledger().GetBalance(ctx, "alice", "CN")
	require.NoError(t, err)
	require.True(t, balance.IsZero())

	_, err = service.Claims().Get(ctx, "claim-1")
	require.ErrorIs(t, err, ErrClaimNotFound)
}

func TestAtomicallyJoinsOuterTransaction(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertTreasury(ctx, &models.Treasury{}))
		return service.Atomically(ctx, func(ctx context.Context, inner store.Tx) error {
			treasury, err := inner.LoadTreasury(ctx)
			require.NoError(t, err)
			treasury.TotalDeposited = 10
			return inner.SaveTreasury(ctx, treasury)
		})
	})
	require.NoError(t, err)

	err = service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		treasury, err := tx.LoadTreasury(ctx)
		require.NoError(t, err)
		require.Equal(t, uint64(10), treasury.TotalDeposited)
		require.Equal(t, int64(2), treasury.Version)
		return nil
	})
	require.NoError(t, err)
}

func TestSaveConfigStaleVersion(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.InsertConfig(ctx, &models.ProtocolConfig{}))
		first, err := tx.LoadConfig(ctx)
		require.NoError(t, err)
		second, err := tx.LoadConfig(ctx)
		require.NoError(t, err)

		first.Locked = true
		require.NoError(t, tx.SaveConfig(ctx, first))
		require.Equal(t, int64(2), first.Version)

		second.ConvertLocked = true
		return tx.SaveConfig(ctx, second)
	})
	require.ErrorIs(t, err, store.ErrConcurrentModification)
}

func TestListOptionsAndStaleReceipts(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0).UTC()

	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		options := []models.OptionRecord{
			{ClaimTokenId: "a", Owner: "alice", Amount: 0, OriginalAmount: 5, CreatedAt: base},
			{ClaimTokenId: "b", Owner: "bob", Amount: 3, OriginalAmount: 3, CreatedAt: base.Add(time.Second)},
			{ClaimTokenId: "c", Owner: "alice", Amount: 9, OriginalAmount: 9, CreatedAt: base.Add(2 * time.Second)},
		}
		for i := range options {
			require.NoError(t, tx.InsertOption(ctx, &options[i]))
		}
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "old", Initialized: true, Amount: 1, Expiration: 100}))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "fresh", Initialized: true, Amount: 1, Expiration: 500}))
		require.NoError(t, tx.SaveReceipt(ctx, &models.DepositReceipt{Depositor: "done", NftIssued: true, Amount: 1, Expiration: 50}))

		all, err := tx.ListOptions(ctx, store.OptionFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "a", all[0].ClaimTokenId)

		spent, err := tx.ListOptions(ctx, store.OptionFilter{SpentOnly: true})
		require.NoError(t, err)
		require.Len(t, spent, 1)
		require.Equal(t, "a", spent[0].ClaimTokenId)

		owned, err := tx.ListOptions(ctx, store.OptionFilter{Owner: "alice", Limit: 1})
		require.NoError(t, err)
		require.Len(t, owned, 1)

		stale, err := tx.ListStaleReceipts(ctx, 200)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		require.Equal(t, "old", stale[0].Depositor)

		require.NoError(t, tx.DeleteOption(ctx, "a"))
		require.ErrorIs(t, tx.DeleteOption(ctx, "a"), store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestListEventsNewestFirst(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	err := service.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		require.NoError(t, tx.AppendEvent(ctx, &models.LedgerEvent{Id: "e1", Kind: models.EventDeposit, Subject: "alice", Amount: 10}))
		require.NoError(t, tx.AppendEvent(ctx, &models.LedgerEvent{Id: "e2", Kind: models.EventDeposit, Subject: "bob", Amount: 20}))
		require.NoError(t, tx.AppendEvent(ctx, &models.LedgerEvent{Id: "e3", Kind: models.EventOptionIssued, Subject: "alice", Amount: 10}))

		all, err := tx.ListEvents(ctx, "", 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		require.Equal(t, "e3", all[0].Id)

		alice, err := tx.ListEvents(ctx, "alice", 1)
		require.NoError(t, err)
		require.Len(t, alice, 1)
		require.Equal(t, models.EventOptionIssued, alice[0].Kind)
		return nil
	})
	require.NoError(t, err)
}
