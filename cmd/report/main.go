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

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"note-option-ledger-go/internal/api"
	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/config"
	"note-option-ledger-go/internal/ledger"
	"note-option-ledger-go/internal/models"

	"go.uber.org/zap"
)

type reportStats struct {
	openOptions   int
	spentOptions  int
	staleReceipts int
	accounts      int
}

func printBalance(balance models.AccountBalance, isLast bool) {
	symbol := common.BoxPrefix(isLast)

	fmt.Printf("%s %-15s: %20s (v%d, last_tx: %s, updated: %s)\n",
		symbol,
		balance.Asset,
		balance.Balance.String(),
		balance.Version,
		common.ShortId(balance.LastTransactionId),
		balance.UpdatedAt.Format("2006-01-02 15:04:05"))
}

func printBalances(balances []models.AccountBalance) {
	for i, balance := range balances {
		isLast := i == len(balances)-1
		printBalance(balance, isLast)
	}
}

func printConfig(cfg *models.ProtocolConfig, treasury *models.Treasury) {
	common.PrintHeader("PROTOCOL", common.DefaultWidth)
	fmt.Printf("Authority:           %s\n", cfg.Authority)
	fmt.Printf("Assets:              note=%s token=%s collection=%s\n", cfg.NoteAssetId, cfg.TokenAssetId, cfg.CollectionId)
	fmt.Printf("Locks:               locked=%t deposit=%t convert=%t\n", cfg.Locked, cfg.DepositLocked, cfg.ConvertLocked)
	fmt.Printf("Open options:        %d\n", cfg.OptionCount)
	fmt.Printf("Total option amount: %d\n", cfg.TotalOptionAmount)
	fmt.Printf("Total deposited:     %d\n", treasury.TotalDeposited)
}

func printOptions(options []models.OptionRecord, stats *reportStats) {
	common.PrintHeader("OPTIONS", common.WideWidth)
	for i, option := range options {
		isLast := i == len(options)-1
		state := "open"
		if option.Spent() {
			state = "spent"
			stats.spentOptions++
		} else {
			stats.openOptions++
		}
		fmt.Printf("%s %-12s owner=%-20s amount=%d/%d expires=%s %s\n",
			common.BoxPrefix(isLast),
			common.ShortId(option.ClaimTokenId),
			option.Owner,
			option.Amount,
			option.OriginalAmount,
			common.FormatUnix(option.Expiration),
			state)
	}
}

func printStaleReceipts(receipts []models.DepositReceipt) {
	if len(receipts) == 0 {
		return
	}
	common.PrintHeader("STALE RECEIPTS", common.DefaultWidth)
	for i, receipt := range receipts {
		fmt.Printf("%s %-20s amount=%d expired=%s\n",
			common.BoxPrefix(i == len(receipts)-1),
			receipt.Depositor,
			receipt.Amount,
			common.FormatUnix(receipt.Expiration))
	}
}

func main() {
	accountsFlag := flag.String("accounts", "", "Comma-separated accounts whose asset balances to print (optional)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	ctx := context.Background()
	logger.Info("Starting ledger report", zap.String("path", cfg.Database.Path))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	svc := api.NewLedgerService(services.Engine, services.DbService)
	stats := reportStats{}

	protocolConfig, err := svc.GetConfig(ctx)
	if err != nil {
		logger.Fatal("Failed to load protocol config", zap.Error(err))
	}
	treasury, err := svc.GetTreasury(ctx)
	if err != nil {
		logger.Fatal("Failed to load treasury", zap.Error(err))
	}
	printConfig(protocolConfig, treasury)

	options, err := svc.ListOptions(ctx, false, "", 0)
	if err != nil {
		logger.Fatal("Failed to list options", zap.Error(err))
	}
	printOptions(options, &stats)

	receipts, err := svc.ListStaleReceipts(ctx)
	if err != nil {
		logger.Fatal("Failed to list stale receipts", zap.Error(err))
	}
	stats.staleReceipts = len(receipts)
	printStaleReceipts(receipts)

	accounts := []string{services.Engine.CustodyAccount()}
	if *accountsFlag != "" {
		accounts = append(accounts, strings.Split(*accountsFlag, ",")...)
	}
	for _, account := range accounts {
		balances, err := svc.GetAccountBalances(ctx, strings.TrimSpace(account))
		if err != nil {
			logger.Error("Failed to get balances", zap.String("account_id", account), zap.Error(err))
			continue
		}
		if len(balances) == 0 {
			continue
		}
		stats.accounts++
		fmt.Printf("\n┌─ Account: %s\n", account)
		common.PrintBoxSeparator(78)
		printBalances(balances)
	}

	reconciled, err := svc.Reconcile(ctx)
	status := "consistent"
	if err != nil {
		if reconciled == nil || !ledger.IsInconsistency(err) {
			logger.Fatal("Failed to reconcile option counters", zap.Error(err))
		}
		status = fmt.Sprintf("MISMATCH (recorded %d/%d, calculated %d/%d)",
			reconciled.RecordedCount, reconciled.RecordedTotal,
			reconciled.CalculatedCount, reconciled.CalculatedTotal)
	}

	summary := fmt.Sprintf("SUMMARY: %d open, %d spent options; %d stale receipts; counters %s",
		stats.openOptions, stats.spentOptions, stats.staleReceipts, status)
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Ledger report completed",
		zap.Int("open_options", stats.openOptions),
		zap.Int("spent_options", stats.spentOptions),
		zap.Int("stale_receipts", stats.staleReceipts),
		zap.Int("accounts", stats.accounts))
}
