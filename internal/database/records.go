package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Amounts are stored as base-10 TEXT: SQLite INTEGER cannot hold the full uint64 range.
func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

func parseAmount(column, s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s '%s': %w", column, s, err)
	}
	return v, nil
}

// recordsTx implements store.Tx over one SQLite transaction.
type recordsTx struct {
	q querier
}

func (t *recordsTx) LoadConfig(ctx context.Context) (*models.ProtocolConfig, error) {
	var cfg models.ProtocolConfig
	var feeBps sql.NullInt64
	var optionCount, totalOptionAmount, depositNonce string

	err := t.q.QueryRowContext(ctx, queryGetConfig).Scan(
		&cfg.Authority, &cfg.NoteAssetId, &cfg.TokenAssetId, &cfg.CollectionId, &feeBps,
		&optionCount, &totalOptionAmount, &depositNonce,
		&cfg.Locked, &cfg.DepositLocked, &cfg.ConvertLocked, &cfg.Version, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get protocol config: %w", err)
	}

	if feeBps.Valid {
		fee := uint16(feeBps.Int64)
		cfg.FeeBps = &fee
	}
	if cfg.OptionCount, err = parseAmount("option_count", optionCount); err != nil {
		return nil, err
	}
	if cfg.TotalOptionAmount, err = parseAmount("total_option_amount", totalOptionAmount); err != nil {
		return nil, err
	}
	if cfg.DepositNonce, err = parseAmount("deposit_nonce", depositNonce); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func feeValue(fee *uint16) sql.NullInt64 {
	if fee == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*fee), Valid: true}
}

func (t *recordsTx) InsertConfig(ctx context.Context, cfg *models.ProtocolConfig) error {
	_, err := t.q.ExecContext(ctx, queryInsertConfig,
		cfg.Authority, cfg.NoteAssetId, cfg.TokenAssetId, cfg.CollectionId, feeValue(cfg.FeeBps),
		formatAmount(cfg.OptionCount), formatAmount(cfg.TotalOptionAmount), formatAmount(cfg.DepositNonce),
		cfg.Locked, cfg.DepositLocked, cfg.ConvertLocked, cfg.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert protocol config: %w", err)
	}
	cfg.Version = 1
	return nil
}

// SaveConfig writes cfg if nobody changed the row since cfg was loaded.
func (t *recordsTx) SaveConfig(ctx context.Context, cfg *models.ProtocolConfig) error {
	result, err := t.q.ExecContext(ctx, queryUpdateConfig,
		cfg.Authority, feeValue(cfg.FeeBps),
		formatAmount(cfg.OptionCount), formatAmount(cfg.TotalOptionAmount), formatAmount(cfg.DepositNonce),
		cfg.Locked, cfg.DepositLocked, cfg.ConvertLocked, cfg.UpdatedAt, cfg.Version)
	if err != nil {
		return fmt.Errorf("failed to update protocol config: %w", err)
	}
	if err := requireOneRow(result, "protocol config"); err != nil {
		return err
	}
	cfg.Version++
	return nil
}

func (t *recordsTx) LoadTreasury(ctx context.Context) (*models.Treasury, error) {
	var treasury models.Treasury
	var total string
	err := t.q.QueryRowContext(ctx, queryGetTreasury).Scan(&treasury.Authority, &total, &treasury.Version, &treasury.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get treasury: %w", err)
	}
	if treasury.TotalDeposited, err = parseAmount("total_deposited", total); err != nil {
		return nil, err
	}
	return &treasury, nil
}

func (t *recordsTx) InsertTreasury(ctx context.Context, treasury *models.Treasury) error {
	_, err := t.q.ExecContext(ctx, queryInsertTreasury, treasury.Authority, formatAmount(treasury.TotalDeposited), treasury.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert treasury: %w", err)
	}
	treasury.Version = 1
	return nil
}

func (t *recordsTx) SaveTreasury(ctx context.Context, treasury *models.Treasury) error {
	result, err := t.q.ExecContext(ctx, queryUpdateTreasury,
		treasury.Authority, formatAmount(treasury.TotalDeposited), treasury.UpdatedAt, treasury.Version)
	if err != nil {
		return fmt.Errorf("failed to update treasury: %w", err)
	}
	if err := requireOneRow(result, "treasury"); err != nil {
		return err
	}
	treasury.Version++
	return nil
}

func requireOneRow(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s update failed - %w", what, store.ErrConcurrentModification)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row rowScanner) (*models.DepositReceipt, error) {
	var receipt models.DepositReceipt
	var amount string
	if err := row.Scan(&receipt.Depositor, &receipt.Initialized, &receipt.NftIssued, &amount, &receipt.Expiration, &receipt.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if receipt.Amount, err = parseAmount("receipt amount", amount); err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (t *recordsTx) LoadReceipt(ctx context.Context, depositor string) (*models.DepositReceipt, error) {
	receipt, err := scanReceipt(t.q.QueryRowContext(ctx, queryGetReceipt, depositor))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

func (t *recordsTx) SaveReceipt(ctx context.Context, receipt *models.DepositReceipt) error {
	_, err := t.q.ExecContext(ctx, queryUpsertReceipt,
		receipt.Depositor, receipt.Initialized, receipt.NftIssued, formatAmount(receipt.Amount), receipt.Expiration, receipt.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save receipt: %w", err)
	}
	return nil
}

func (t *recordsTx) ListStaleReceipts(ctx context.Context, now int64) ([]models.DepositReceipt, error) {
	rows, err := t.q.QueryContext(ctx, queryGetStaleReceipts, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale receipts: %w", err)
	}
	defer closeRows(rows)

	var receipts []models.DepositReceipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, *receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipt rows: %w", err)
	}
	return receipts, nil
}

func scanOption(row rowScanner) (*models.OptionRecord, error) {
	var option models.OptionRecord
	var amount, original string
	if err := row.Scan(&option.ClaimTokenId, &option.Owner, &amount, &original, &option.Expiration, &option.CreatedAt, &option.UpdatedAt); err != nil {
		return nil, err
	}
	var err error
	if option.Amount, err = parseAmount("option amount", amount); err != nil {
		return nil, err
	}
	if option.OriginalAmount, err = parseAmount("original amount", original); err != nil {
		return nil, err
	}
	return &option, nil
}

func (t *recordsTx) LoadOption(ctx context.Context, claimTokenId string) (*models.OptionRecord, error) {
	option, err := scanOption(t.q.QueryRowContext(ctx, queryGetOption, claimTokenId))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return option, nil
}

func (t *recordsTx) InsertOption(ctx context.Context, option *models.OptionRecord) error {
	_, err := t.q.ExecContext(ctx, queryInsertOption,
		option.ClaimTokenId, option.Owner, formatAmount(option.Amount), formatAmount(option.OriginalAmount),
		option.Expiration, option.CreatedAt, option.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("failed to insert option: %w", err)
	}
	return nil
}

func (t *recordsTx) SaveOption(ctx context.Context, option *models.OptionRecord) error {
	result, err := t.q.ExecContext(ctx, queryUpdateOption, option.Owner, formatAmount(option.Amount), option.UpdatedAt, option.ClaimTokenId)
	if err != nil {
		return fmt.Errorf("failed to update option: %w", err)
	}
	return requireFound(result)
}

func (t *recordsTx) DeleteOption(ctx context.Context, claimTokenId string) error {
	result, err := t.q.ExecContext(ctx, queryDeleteOption, claimTokenId)
	if err != nil {
		return fmt.Errorf("failed to delete option: %w", err)
	}
	return requireFound(result)
}

func requireFound(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *recordsTx) ListOptions(ctx context.Context, filter store.OptionFilter) ([]models.OptionRecord, error) {
	var where []string
	var args []any
	if filter.SpentOnly {
		where = append(where, "amount = '0'")
	}
	if filter.Owner != "" {
		where = append(where, "owner = ?")
		args = append(args, filter.Owner)
	}

	query := queryListOptions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, claim_token_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	defer closeRows(rows)

	var options []models.OptionRecord
	for rows.Next() {
		option, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, *option)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating option rows: %w", err)
	}
	return options, nil
}

func (t *recordsTx) AppendEvent(ctx context.Context, event *models.LedgerEvent) error {
	_, err := t.q.ExecContext(ctx, queryInsertEvent,
		event.Id, event.OperationId, event.Kind, event.Subject, formatAmount(event.Amount), event.Detail, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert ledger event: %w", err)
	}
	return nil
}

func (t *recordsTx) ListEvents(ctx context.Context, subject string, limit int) ([]models.LedgerEvent, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := t.q.QueryContext(ctx, queryListEvents, subject, subject, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger events: %w", err)
	}
	defer closeRows(rows)

	var events []models.LedgerEvent
	for rows.Next() {
		var event models.LedgerEvent
		var amount string
		if err := rows.Scan(&event.Id, &event.OperationId, &event.Kind, &event.Subject, &amount, &event.Detail, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		if event.Amount, err = parseAmount("event amount", amount); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger event rows: %w", err)
	}
	return events, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique || sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
