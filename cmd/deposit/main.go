package main

import (
	"context"
	"flag"
	"fmt"

	"note-option-ledger-go/internal/api"
	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/config"
	"note-option-ledger-go/internal/models"
)

func main() {
	depositorFlag := flag.String("depositor", "", "Depositor account (required)")
	amountFlag := flag.Uint64("amount", 0, "Deposited value in base units (required)")
	durationFlag := flag.String("duration", "3m", "Option duration: 3m, 6m, 12m, 24m or seconds")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	duration, err := common.ParseOptionDuration(*durationFlag)
	if err != nil {
		common.Exit(logger, "Invalid duration", err)
	}

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		common.Exit(logger, "Failed to initialize services", err)
	}
	defer services.Close()

	svc := api.NewLedgerService(services.Engine, services.DbService)
	result, err := svc.Deposit(ctx, models.DepositRequest{
		Depositor: *depositorFlag,
		Amount:    *amountFlag,
		Duration:  duration,
	})
	if err != nil {
		services.Close()
		common.Exit(logger, "Deposit failed", err)
	}

	fmt.Printf("Deposit accepted for %s\n", result.Receipt.Depositor)
	fmt.Printf("  Amount:        %d\n", result.Receipt.Amount)
	fmt.Printf("  Tokens minted: %d (nav %s)\n", result.TokensMinted, result.Nav)
	fmt.Printf("  Expires:       %s\n", common.FormatUnix(result.Receipt.Expiration))
}
