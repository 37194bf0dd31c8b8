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
	depositorFlag := flag.String("depositor", "", "Depositor whose pending receipt becomes an option (required)")
	claimFlag := flag.String("claim", "", "Claim token id to mint (default: a new uuid)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		common.Exit(logger, "Failed to initialize services", err)
	}
	defer services.Close()

	svc := api.NewLedgerService(services.Engine, services.DbService)
	option, err := svc.IssueOption(ctx, models.IssueOptionRequest{
		Depositor:    *depositorFlag,
		ClaimTokenId: *claimFlag,
	})
	if err != nil {
		services.Close()
		common.Exit(logger, "Option issuance failed", err)
	}

	fmt.Printf("Option issued to %s\n", option.Owner)
	fmt.Printf("  Claim token: %s\n", option.ClaimTokenId)
	fmt.Printf("  Amount:      %d\n", option.Amount)
	fmt.Printf("  Expires:     %s\n", common.FormatUnix(option.Expiration))
}
