// Package ledger implements the deposit, receipt, option and conversion
// operations over the protocol records held by a store.LedgerStore.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"note-option-ledger-go/internal/metrics"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"
	"note-option-ledger-go/internal/valuation"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Allowed option durations: 3, 6, 12 and 24 thirty-day months in seconds.
const (
	Duration3Months  uint32 = 7_776_000
	Duration6Months  uint32 = 15_552_000
	Duration12Months uint32 = 31_104_000
	Duration24Months uint32 = 62_208_000
)

// DefaultDurations lists the durations accepted when Options leaves them empty.
var DefaultDurations = []uint32{Duration3Months, Duration6Months, Duration12Months, Duration24Months}

// Operation names used for logging, metrics and operation ids.
const (
	opInitialize  = "initialize"
	opDeposit     = "deposit"
	opIssueOption = "issue_option"
	opConvert     = "convert"
	opClose       = "close"
	opTransfer    = "transfer_option"
	opUpdateLocks = "update_locks"
)

const (
	defaultClaimName   = "zOption"
	defaultClaimSymbol = "zOption"
	defaultClaimUri    = "https://metadata.zephyr.haus/metadata/{amount}/{expiration}"
)

// Options configures an Engine.
type Options struct {
	AllowedDurations   []uint32
	CustodyAccount     string
	Claim              models.ClaimSettings
	OptionStorageUnits uint64
	Valuation          valuation.Policy
	Metrics            *metrics.LedgerMetrics
}

// Engine executes ledger operations. Each operation runs as one unit of work
// in the store and re-validates every precondition against state read inside it.
type Engine struct {
	store          store.LedgerStore
	collab         Collaborators
	durations      map[uint32]struct{}
	custodyAccount string
	claim          models.ClaimSettings
	storageUnits   uint64
	policy         valuation.Policy
	metrics        *metrics.LedgerMetrics
	nowFn          func() time.Time
}

// NewEngine wires an engine to its store and collaborators.
func NewEngine(st store.LedgerStore, collab Collaborators, opts Options) (*Engine, error) {
	if st == nil {
		return nil, errors.New("ledger engine: store is required")
	}
	if !collab.complete() {
		return nil, errors.New("ledger engine: custody, tokens, claims and storage collaborators are required")
	}
	if opts.CustodyAccount == "" {
		return nil, errors.New("ledger engine: custody account is required")
	}

	durations := opts.AllowedDurations
	if len(durations) == 0 {
		durations = DefaultDurations
	}
	allowed := make(map[uint32]struct{}, len(durations))
	for _, d := range durations {
		if d == 0 {
			return nil, errors.New("ledger engine: option duration must be positive")
		}
		allowed[d] = struct{}{}
	}

	claim := opts.Claim
	if claim.Name == "" {
		claim.Name = defaultClaimName
	}
	if claim.Symbol == "" {
		claim.Symbol = defaultClaimSymbol
	}
	if claim.UriTemplate == "" {
		claim.UriTemplate = defaultClaimUri
	}

	policy := opts.Valuation
	if policy == nil {
		policy = valuation.Unit()
	}

	return &Engine{
		store:          st,
		collab:         collab,
		durations:      allowed,
		custodyAccount: opts.CustodyAccount,
		claim:          claim,
		storageUnits:   opts.OptionStorageUnits,
		policy:         policy,
		metrics:        opts.Metrics,
		nowFn:          func() time.Time { return time.Now().UTC() },
	}, nil
}

// SetNowFunc overrides the clock. Nil restores the default UTC clock.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = func() time.Time { return time.Now().UTC() }
		return
	}
	e.nowFn = now
}

// CustodyAccount returns the account holding deposited value and undistributed protocol tokens.
func (e *Engine) CustodyAccount() string { return e.custodyAccount }

func (e *Engine) now() time.Time { return e.nowFn() }

// run executes fn as one unit of work tagged with a fresh operation id,
// then logs and records the outcome.
func (e *Engine) run(ctx context.Context, kind, subject string, fn func(ctx context.Context, tx store.Tx) error) error {
	start := time.Now()
	oc := &models.OperationContext{
		OperationId: uuid.New().String(),
		Kind:        kind,
		Subject:     subject,
	}
	ctx = models.WithOperationContext(ctx, oc)

	err := e.store.Atomically(ctx, fn)
	class := Classify(err)
	e.metrics.Observe(kind, class, time.Since(start))

	fields := []zap.Field{
		zap.String("operation_id", oc.OperationId),
		zap.String("operation", kind),
		zap.String("subject", subject),
	}
	switch class {
	case "":
	case ClassInconsistency:
		zap.L().Error("Ledger bookkeeping inconsistency", append(fields, zap.Error(err))...)
	case ClassValidation:
		zap.L().Info("Ledger operation rejected", append(fields, zap.Error(err))...)
	default:
		zap.L().Warn("Ledger operation failed", append(fields, zap.String("class", class), zap.Error(err))...)
	}
	return err
}

// view runs a read-only unit of work without metrics or an operation id.
func (e *Engine) view(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return e.store.Atomically(ctx, fn)
}

func (e *Engine) appendEvent(ctx context.Context, tx store.Tx, kind, subject string, amount uint64, detail string) error {
	event := &models.LedgerEvent{
		Id:        uuid.New().String(),
		Kind:      kind,
		Subject:   subject,
		Amount:    amount,
		Detail:    detail,
		CreatedAt: e.now(),
	}
	if oc := models.GetOperationContext(ctx); oc != nil {
		event.OperationId = oc.OperationId
	}
	if err := tx.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	return nil
}

func (e *Engine) publishConfig(cfg *models.ProtocolConfig) {
	if cfg != nil {
		e.metrics.SetOptionTotals(cfg.OptionCount, cfg.TotalOptionAmount)
	}
}

func loadConfig(ctx context.Context, tx store.Tx) (*models.ProtocolConfig, error) {
	cfg, err := tx.LoadConfig(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol config: %w", err)
	}
	return cfg, nil
}

func loadTreasury(ctx context.Context, tx store.Tx) (*models.Treasury, error) {
	treasury, err := tx.LoadTreasury(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load treasury: %w", err)
	}
	return treasury, nil
}

// Initialize creates the protocol config and treasury singletons exactly once.
func (e *Engine) Initialize(ctx context.Context, settings models.ProtocolSettings) (*models.ProtocolConfig, error) {
	if settings.NoteAssetId == "" || settings.TokenAssetId == "" || settings.CollectionId == "" {
		return nil, fmt.Errorf("%w: note, token and collection asset ids are required", ErrInvalidProtocolSettings)
	}
	if settings.NoteAssetId == settings.TokenAssetId {
		return nil, fmt.Errorf("%w: note and token asset ids must differ", ErrInvalidProtocolSettings)
	}
	if settings.FeeBps != nil && *settings.FeeBps > 10_000 {
		return nil, fmt.Errorf("%w: fee_bps %d exceeds 10000", ErrInvalidProtocolSettings, *settings.FeeBps)
	}

	var created *models.ProtocolConfig
	err := e.run(ctx, opInitialize, settings.CollectionId, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.LoadConfig(ctx)
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("failed to load protocol config: %w", err)
		}

		now := e.now()
		cfg := &models.ProtocolConfig{
			Authority:    settings.Authority,
			NoteAssetId:  settings.NoteAssetId,
			TokenAssetId: settings.TokenAssetId,
			CollectionId: settings.CollectionId,
			FeeBps:       settings.FeeBps,
			UpdatedAt:    now,
		}
		if err := tx.InsertConfig(ctx, cfg); err != nil {
			return fmt.Errorf("failed to insert protocol config: %w", err)
		}
		treasury := &models.Treasury{Authority: settings.TreasuryAuthority, UpdatedAt: now}
		if err := tx.InsertTreasury(ctx, treasury); err != nil {
			return fmt.Errorf("failed to insert treasury: %w", err)
		}
		if err := e.appendEvent(ctx, tx, models.EventInitialized, settings.CollectionId, 0,
			fmt.Sprintf("note=%s token=%s", settings.NoteAssetId, settings.TokenAssetId)); err != nil {
			return err
		}
		created = cfg
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Protocol initialized",
		zap.String("note_asset_id", created.NoteAssetId),
		zap.String("token_asset_id", created.TokenAssetId),
		zap.String("collection_id", created.CollectionId),
		zap.Bool("authority_set", created.HasAuthority()))
	e.publishConfig(created)
	return created, nil
}

// GetConfig returns the committed protocol config.
func (e *Engine) GetConfig(ctx context.Context) (*models.ProtocolConfig, error) {
	var cfg *models.ProtocolConfig
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		cfg, err = loadConfig(ctx, tx)
		return err
	})
	return cfg, err
}

// GetTreasury returns the committed treasury.
func (e *Engine) GetTreasury(ctx context.Context) (*models.Treasury, error) {
	var treasury *models.Treasury
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		treasury, err = loadTreasury(ctx, tx)
		return err
	})
	return treasury, err
}

// GetReceipt returns the receipt slot of depositor.
func (e *Engine) GetReceipt(ctx context.Context, depositor string) (*models.DepositReceipt, error) {
	var receipt *models.DepositReceipt
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		receipt, err = tx.LoadReceipt(ctx, depositor)
		if errors.Is(err, store.ErrNotFound) {
			return ErrReceiptNotFound
		}
		return err
	})
	return receipt, err
}

// GetOption returns the option record backed by claimTokenId.
func (e *Engine) GetOption(ctx context.Context, claimTokenId string) (*models.OptionRecord, error) {
	var option *models.OptionRecord
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		option, err = tx.LoadOption(ctx, claimTokenId)
		if errors.Is(err, store.ErrNotFound) {
			return ErrOptionNotFound
		}
		return err
	})
	return option, err
}

// ListOptions returns option records matching filter.
func (e *Engine) ListOptions(ctx context.Context, filter store.OptionFilter) ([]models.OptionRecord, error) {
	var options []models.OptionRecord
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		options, err = tx.ListOptions(ctx, filter)
		return err
	})
	return options, err
}

// ListStaleReceipts returns outstanding receipts whose pending claim expired.
func (e *Engine) ListStaleReceipts(ctx context.Context) ([]models.DepositReceipt, error) {
	var receipts []models.DepositReceipt
	now := e.now().Unix()
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		receipts, err = tx.ListStaleReceipts(ctx, now)
		return err
	})
	return receipts, err
}

// ListEvents returns the most recent audit events, optionally for one subject.
func (e *Engine) ListEvents(ctx context.Context, subject string, limit int) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		events, err = tx.ListEvents(ctx, subject, limit)
		return err
	})
	return events, err
}

// Reconcile recomputes the option counters from the option records. A
// mismatch is returned alongside ErrCountersMismatch.
func (e *Engine) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	result := &models.ReconcileResult{}
	err := e.view(ctx, func(ctx context.Context, tx store.Tx) error {
		cfg, err := loadConfig(ctx, tx)
		if err != nil {
			return err
		}
		options, err := tx.ListOptions(ctx, store.OptionFilter{})
		if err != nil {
			return fmt.Errorf("failed to list options: %w", err)
		}

		result.RecordedCount = cfg.OptionCount
		result.RecordedTotal = cfg.TotalOptionAmount
		for _, option := range options {
			if option.Spent() {
				result.SpentRecords++
				continue
			}
			result.CalculatedCount++
			result.CalculatedTotal, err = checkedAdd(result.CalculatedTotal, option.Amount)
			if err != nil {
				return fmt.Errorf("summing option amounts: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Consistent() {
		zap.L().Error("Option reconciliation failed",
			zap.Uint64("recorded_count", result.RecordedCount),
			zap.Uint64("calculated_count", result.CalculatedCount),
			zap.Uint64("recorded_total", result.RecordedTotal),
			zap.Uint64("calculated_total", result.CalculatedTotal))
		return result, ErrCountersMismatch
	}

	zap.L().Info("Option reconciliation successful",
		zap.Uint64("option_count", result.RecordedCount),
		zap.Uint64("total_option_amount", result.RecordedTotal),
		zap.Uint64("spent_records", result.SpentRecords))
	return result, nil
}

// claimUri renders the claim metadata uri for an option.
func (e *Engine) claimUri(amount uint64, expiration int64) string {
	return strings.NewReplacer(
		"{amount}", strconv.FormatUint(amount, 10),
		"{expiration}", strconv.FormatInt(expiration, 10),
	).Replace(e.claim.UriTemplate)
}
