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

package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/models"
	"note-option-ledger-go/internal/store"

	"go.uber.org/zap"
)

// Ledger is the part of the ledger engine the sweeper drives
type Ledger interface {
	GetConfig(ctx context.Context) (*models.ProtocolConfig, error)
	ListOptions(ctx context.Context, filter store.OptionFilter) ([]models.OptionRecord, error)
	ListStaleReceipts(ctx context.Context) ([]models.DepositReceipt, error)
	Close(ctx context.Context, req models.CloseRequest) error
}

// Config contains configuration for Sweeper
type Config struct {
	Ledger          Ledger
	PollingInterval time.Duration
	// BatchSize caps the spent options closed per sweep
	BatchSize int
	// ReportWindow is how long a stale receipt stays reported before it is logged again
	ReportWindow time.Duration
}

// Result summarizes one sweep
type Result struct {
	Closed        int
	Failed        int
	StaleReceipts int
	NewlyStale    int
}

// Sweeper periodically closes fully converted options to the protocol
// authority and reports receipts whose option window has passed
type Sweeper struct {
	ledger          Ledger
	pollingInterval time.Duration
	batchSize       int
	reportWindow    time.Duration

	// Stale receipts already reported, by depositor
	reported map[string]time.Time
	mutex    sync.RWMutex

	// Control channels
	stopChan chan struct{}
	doneChan chan struct{}
}

// New creates a new sweeper
func New(cfg Config) *Sweeper {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	reportWindow := cfg.ReportWindow
	if reportWindow <= 0 {
		reportWindow = 24 * time.Hour
	}
	return &Sweeper{
		ledger:          cfg.Ledger,
		pollingInterval: cfg.PollingInterval,
		batchSize:       batchSize,
		reportWindow:    reportWindow,
		reported:        make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start checks the protocol is initialized and launches the poll loop
func (s *Sweeper) Start(ctx context.Context) error {
	zap.L().Info("Starting option sweeper")

	if s.pollingInterval <= 0 {
		return fmt.Errorf("polling interval must be positive, got %v", s.pollingInterval)
	}

	cfg, err := s.ledger.GetConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load protocol config: %w", err)
	}
	if !cfg.HasAuthority() {
		zap.L().Warn("No protocol authority set - spent options will not be closed")
	}

	go s.pollLoop(ctx)

	zap.L().Info("Option sweeper started successfully",
		zap.Duration("polling_interval", s.pollingInterval),
		zap.Int("batch_size", s.batchSize))
	return nil
}

// Stop gracefully stops the sweeper
func (s *Sweeper) Stop() {
	zap.L().Info("Stopping option sweeper")
	close(s.stopChan)
	<-s.doneChan
	zap.L().Info("Option sweeper stopped")
}

// pollLoop runs the main polling loop
func (s *Sweeper) pollLoop(ctx context.Context) {
	defer close(s.doneChan)

	ticker := time.NewTicker(s.pollingInterval)
	defer ticker.Stop()

	s.sweepAndLog(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweepAndLog(ctx)
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	result, err := s.Sweep(ctx)
	if err != nil {
		zap.L().Error("Sweep failed", zap.Error(err))
		return
	}
	if result.Closed > 0 || result.Failed > 0 || result.NewlyStale > 0 {
		zap.L().Info("Sweep completed",
			zap.Int("closed", result.Closed),
			zap.Int("failed", result.Failed),
			zap.Int("stale_receipts", result.StaleReceipts))
	}
}

// Sweep runs one pass: close spent options, then report stale receipts
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	result := &Result{}

	cfg, err := s.ledger.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol config: %w", err)
	}

	if cfg.HasAuthority() {
		if err := s.closeSpent(ctx, cfg.Authority, result); err != nil {
			return nil, err
		}
	}

	if err := s.reportStale(ctx, result); err != nil {
		return nil, err
	}
	s.cleanupReported()

	return result, nil
}

func (s *Sweeper) closeSpent(ctx context.Context, authority string, result *Result) error {
	spent, err := s.ledger.ListOptions(ctx, store.OptionFilter{SpentOnly: true, Limit: s.batchSize})
	if err != nil {
		return fmt.Errorf("failed to list spent options: %w", err)
	}

	for _, option := range spent {
		err := s.ledger.Close(ctx, models.CloseRequest{ClaimTokenId: option.ClaimTokenId, Receiver: authority})
		switch {
		case err == nil:
			result.Closed++
		case errors.Is(err, ledger.ErrOptionNotFound):
			// Closed by someone else since the listing
			zap.L().Debug("Spent option already closed", zap.String("claim_token_id", option.ClaimTokenId))
		default:
			result.Failed++
			zap.L().Error("Failed to close spent option",
				zap.String("claim_token_id", option.ClaimTokenId),
				zap.String("class", ledger.Classify(err)),
				zap.Error(err))
		}
	}
	return nil
}

func (s *Sweeper) reportStale(ctx context.Context, result *Result) error {
	receipts, err := s.ledger.ListStaleReceipts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stale receipts: %w", err)
	}

	result.StaleReceipts = len(receipts)
	for _, receipt := range receipts {
		if s.isReported(receipt.Depositor) {
			continue
		}
		zap.L().Warn("Deposit receipt expired before an option was issued",
			zap.String("depositor", receipt.Depositor),
			zap.Uint64("amount", receipt.Amount),
			zap.Int64("expiration", receipt.Expiration))
		s.markReported(receipt.Depositor)
		result.NewlyStale++
	}
	return nil
}

// isReported checks if we've already reported this receipt
func (s *Sweeper) isReported(depositor string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	_, exists := s.reported[depositor]
	return exists
}

// markReported marks a receipt as reported
func (s *Sweeper) markReported(depositor string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.reported[depositor] = time.Now()
}

// cleanupReported forgets receipts reported longer ago than the report window
func (s *Sweeper) cleanupReported() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	cutoff := time.Now().Add(-s.reportWindow)
	cleaned := 0

	for depositor, reportedAt := range s.reported {
		if reportedAt.Before(cutoff) {
			delete(s.reported, depositor)
			cleaned++
		}
	}

	if cleaned > 0 {
		zap.L().Debug("Cleaned up reported receipts",
			zap.Int("cleaned", cleaned),
			zap.Int("remaining", len(s.reported)))
	}
}
