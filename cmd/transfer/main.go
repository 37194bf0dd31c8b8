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
	claimFlag := flag.String("claim", "", "Claim token id of the option (required)")
	fromFlag := flag.String("from", "", "Current holder of the claim instrument (required)")
	toFlag := flag.String("to", "", "New holder (required)")
	notesFlag := flag.Uint64("notes", 0, "Notes to move along with the claim instrument")
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
	option, err := svc.TransferOption(ctx, models.TransferRequest{
		ClaimTokenId: *claimFlag,
		From:         *fromFlag,
		To:           *toFlag,
		Notes:        *notesFlag,
	})
	if err != nil {
		services.Close()
		common.Exit(logger, "Transfer failed", err)
	}

	fmt.Printf("Option %s now held by %s\n", option.ClaimTokenId, option.Owner)
	fmt.Printf("  Remaining: %d\n", option.Amount)
	fmt.Printf("  Expires:   %s\n", common.FormatUnix(option.Expiration))
	if *notesFlag > 0 {
		fmt.Printf("  Notes:     %d moved\n", *notesFlag)
	}
}
