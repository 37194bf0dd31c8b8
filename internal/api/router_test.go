package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/database"
	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/metrics"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	handler http.Handler
	svc     *LedgerService
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	settings := &models.ProtocolSettings{
		Authority:          "admin",
		NoteAssetId:        "CN",
		TokenAssetId:       "PT",
		CollectionId:       "zoptions",
		CustodyAccount:     "custody",
		OptionStorageUnits: 100,
	}
	engine, err := common.NewEngine(db, settings, metrics.NewUnregistered())
	require.NoError(t, err)

	ts := &testServer{now: time.Unix(1_700_000_000, 0).UTC()}
	engine.SetNowFunc(func() time.Time { return ts.now })
	_, err = engine.Initialize(ctx, *settings)
	require.NoError(t, err)

	ts.svc = NewLedgerService(engine, db)
	ts.handler = NewRouter(RouterConfig{
		Service:       ts.svc,
		Authenticator: NewAuthenticator(testSecret),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	token, err := IssueToken(testSecret, subject, time.Minute)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestOptionLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")

	rec := ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Amount: 1000, Duration: ledger.Duration3Months}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	deposit := decode[models.DepositResult](t, rec)
	require.Equal(t, uint64(1000), deposit.TokensMinted)
	require.Equal(t, "alice", deposit.Receipt.Depositor)

	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{Depositor: "alice", ClaimTokenId: "claim-1"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/convert", convertBody{Amount: 400}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.False(t, decode[models.ConvertResult](t, rec).Full)

	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/transfer", transferBody{To: "bob", Notes: 600}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "bob", decode[models.OptionRecord](t, rec).Owner)

	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/convert", convertBody{Amount: 600}, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	converted := decode[models.ConvertResult](t, rec)
	require.True(t, converted.Full)

	rec = ts.do(t, http.MethodGet, "/v1/options?spent=true", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.OptionRecord](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/v1/accounts/bob/balances", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	balances := decode[[]models.AccountBalance](t, rec)
	require.Len(t, balances, 1)
	require.Equal(t, "PT", balances[0].Asset)

	rec = ts.do(t, http.MethodPost, "/v1/admin/options/claim-1/close", closeBody{}, tokenFor(t, "admin"))
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/v1/options/claim-1", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/reconcile", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	reconciled := decode[models.ReconcileResult](t, rec)
	require.True(t, reconciled.Consistent())

	rec = ts.do(t, http.MethodGet, "/v1/events?subject=claim-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]models.LedgerEvent](t, rec), 5)
}

func TestUserRoutesActForCaller(t *testing.T) {
	ts := newTestServer(t)
	alice := tokenFor(t, "alice")
	mallory := tokenFor(t, "mallory")

	rec := ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Depositor: "alice", Amount: 1000, Duration: ledger.Duration3Months}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Depositor: "alice", Amount: 1000, Duration: ledger.Duration3Months}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Depositor: "alice", Amount: 1000, Duration: ledger.Duration3Months}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// issuing someone else's receipt
	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{ClaimTokenId: "mallory-picked"}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{Depositor: "alice", ClaimTokenId: "mallory-picked"}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{ClaimTokenId: "mallory-picked"}, mallory)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{ClaimTokenId: "claim-1"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// converting or moving someone else's option
	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/convert", map[string]any{"amount": 1000}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/convert", convertBody{Holder: "alice", Amount: 1000}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/convert", convertBody{Amount: 1000}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/transfer", transferBody{To: "carol"}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
	rec = ts.do(t, http.MethodPost, "/v1/options/claim-1/transfer", transferBody{From: "alice", To: "mallory"}, mallory)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/options/claim-1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	option := decode[models.OptionRecord](t, rec)
	require.Equal(t, uint64(1000), option.Amount)
	require.Equal(t, "alice", option.Owner)
}

func TestValidationErrorsMapToBadRequest(t *testing.T) {
	ts := newTestServer(t)

	alice := tokenFor(t, "alice")
	rec := ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Depositor: "alice", Amount: 0, Duration: ledger.Duration3Months}, alice)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[models.ErrorResponse](t, rec)
	require.Equal(t, ledger.ClassValidation, body.Class)

	rec = ts.do(t, http.MethodPost, "/v1/deposits", map[string]any{"depositor": "alice", "bogus": 1}, alice)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/receipts/nobody", nil, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	locked := true

	rec := ts.do(t, http.MethodPost, "/v1/admin/locks", models.LockUpdate{ConvertLocked: &locked}, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := IssueToken("other-secret", "admin", time.Minute)
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/v1/admin/locks", models.LockUpdate{ConvertLocked: &locked}, forged)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/admin/locks", models.LockUpdate{ConvertLocked: &locked}, tokenFor(t, "mallory"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/v1/admin/locks", models.LockUpdate{ConvertLocked: &locked}, tokenFor(t, "admin"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cfg := decode[models.ProtocolConfig](t, rec)
	require.True(t, cfg.ConvertLocked)
	require.False(t, cfg.Locked)
}

func TestIssueOptionAssignsClaimId(t *testing.T) {
	ts := newTestServer(t)

	bob := tokenFor(t, "bob")
	rec := ts.do(t, http.MethodPost, "/v1/deposits", models.DepositRequest{Depositor: "bob", Amount: 50, Duration: ledger.Duration6Months}, bob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/v1/options", models.IssueOptionRequest{}, bob)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	option := decode[models.OptionRecord](t, rec)
	require.NotEmpty(t, option.ClaimTokenId)
	require.Equal(t, ts.now.Unix()+int64(ledger.Duration6Months), option.Expiration)
}

func TestStatusForClasses(t *testing.T) {
	require.Equal(t, http.StatusNotFound, statusFor(ledger.ErrOptionNotFound))
	require.Equal(t, http.StatusForbidden, statusFor(ledger.ErrUnauthorized))
	require.Equal(t, http.StatusForbidden, statusFor(fmt.Errorf("claim possession check failed: %w", store.ErrNotHeld)))
	require.Equal(t, http.StatusBadRequest, statusFor(ledger.ErrZeroAmount))
	require.Equal(t, http.StatusUnprocessableEntity, statusFor(ledger.ErrOverflow))
	require.Equal(t, http.StatusInternalServerError, statusFor(ledger.ErrInsufficientTotalOptionAmount))
}
