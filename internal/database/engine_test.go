package database

import (
	"context"
	"testing"
	"time"

	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/metrics"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newSQLiteEngine(t *testing.T, service *Service, now *time.Time) *ledger.Engine {
	t.Helper()

	collaborators := ledger.Collaborators{
		Custody: service.Assets(),
		Tokens:  service.Assets(),
		Claims:  service.Claims(),
		Storage: service.Assets(),
	}
	engine, err := ledger.NewEngine(service, collaborators, ledger.Options{
		CustodyAccount:     "custody",
		OptionStorageUnits: 2_039_280,
		Metrics:            metrics.NewUnregistered(),
	})
	require.NoError(t, err)
	engine.SetNowFunc(func() time.Time { return *now })

	_, err = engine.Initialize(context.Background(), models.ProtocolSettings{
		Authority:    "admin",
		NoteAssetId:  "CN",
		TokenAssetId: "PT",
		CollectionId: "zoptions",
	})
	require.NoError(t, err)
	return engine
}

func requireBalance(t *testing.T, service *Service, account, asset string, want int64) {
	t.Helper()
	balance, err := service.Subledger().GetBalance(context.Background(), account, asset)
	require.NoError(t, err)
	require.True(t, balance.Equal(decimal.NewFromInt(want)), "%s %s: got %s, want %d", account, asset, balance.String(), want)
}

func TestEngineOverSQLite(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()
	engine := newSQLiteEngine(t, service, &now)

	_, err := engine.Deposit(ctx, models.DepositRequest{Depositor: "alice", Amount: 1000, Duration: ledger.Duration3Months})
	require.NoError(t, err)
	requireBalance(t, service, "custody", models.NativeAsset, 1000)
	requireBalance(t, service, "alice", "CN", 1000)
	requireBalance(t, service, "custody", "PT", 1000)

	option, err := engine.IssueOption(ctx, models.IssueOptionRequest{Depositor: "alice", ClaimTokenId: "claim-1"})
	require.NoError(t, err)
	require.Equal(t, now.Unix()+int64(ledger.Duration3Months), option.Expiration)

	claim, err := service.Claims().Get(ctx, "claim-1")
	require.NoError(t, err)
	require.True(t, claim.Verified)
	require.Equal(t, "alice", claim.Holder)

	now = now.Add(time.Hour)
	result, err := engine.Convert(ctx, models.ConvertRequest{ClaimTokenId: "claim-1", Holder: "alice", Amount: 400})
	require.NoError(t, err)
	require.False(t, result.Full)
	requireBalance(t, service, "alice", "CN", 600)
	requireBalance(t, service, "alice", "PT", 400)

	// The option changes hands; the new holder converts the rest
	moved, err := engine.TransferOption(ctx, models.TransferRequest{ClaimTokenId: "claim-1", From: "alice", To: "bob", Notes: 600})
	require.NoError(t, err)
	require.Equal(t, "bob", moved.Owner)
	requireBalance(t, service, "bob", "CN", 600)

	_, err = engine.Convert(ctx, models.ConvertRequest{ClaimTokenId: "claim-1", Holder: "alice", Amount: 1})
	require.ErrorIs(t, err, store.ErrNotHeld)

	result, err = engine.Convert(ctx, models.ConvertRequest{ClaimTokenId: "claim-1", Holder: "bob", Amount: 600})
	require.NoError(t, err)
	require.True(t, result.Full)
	require.Equal(t, uint64(0), result.OptionCount)
	requireBalance(t, service, "bob", "PT", 600)
	requireBalance(t, service, "custody", "PT", 0)

	claim, err = service.Claims().Get(ctx, "claim-1")
	require.NoError(t, err)
	require.True(t, claim.Burned)

	require.NoError(t, engine.Close(ctx, models.CloseRequest{ClaimTokenId: "claim-1", Receiver: "admin"}))
	requireBalance(t, service, "admin", models.StorageAsset, 2_039_280)

	_, err = engine.GetOption(ctx, "claim-1")
	require.ErrorIs(t, err, ledger.ErrOptionNotFound)

	reconciled, err := engine.Reconcile(ctx)
	require.NoError(t, err)
	require.True(t, reconciled.Consistent())

	events, err := engine.ListEvents(ctx, "claim-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
	require.Equal(t, models.EventOptionClosed, events[0].Kind)
	require.NotEmpty(t, events[0].OperationId)

	require.NoError(t, service.Subledger().ReconcileBalance(ctx, "alice", "CN"))
}

func TestEngineOverSQLiteRollsBackFailedConvert(t *testing.T) {
	service, cleanup := setupTestService(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0).UTC()
	engine := newSQLiteEngine(t, service, &now)

	_, err := engine.Deposit(ctx, models.DepositRequest{Depositor: "alice", Amount: 1000, Duration: ledger.Duration3Months})
	require.NoError(t, err)
	_, err = engine.IssueOption(ctx, models.IssueOptionRequest{Depositor: "alice", ClaimTokenId: "claim-1"})
	require.NoError(t, err)

	// Alice gives away her notes, so burning them fails after the possession check
	require.NoError(t, service.Assets().Transfer(ctx, "CN", "alice", "carol", 1000))

	_, err = engine.Convert(ctx, models.ConvertRequest{ClaimTokenId: "claim-1", Holder: "alice", Amount: 400})
	require.Error(t, err)
	require.Equal(t, ledger.ClassCollaborator, ledger.Classify(err))

	option, err := engine.GetOption(ctx, "claim-1")
	require.NoError(t, err)
	require.Equal(t, uint64(1000), option.Amount)
	requireBalance(t, service, "custody", "PT", 1000)
	requireBalance(t, service, "alice", "PT", 0)
}
