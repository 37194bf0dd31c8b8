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
	holderFlag := flag.String("holder", "", "Current holder of the claim instrument (default: option owner)")
	amountFlag := flag.Uint64("amount", 0, "Amount to convert (required)")
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
	result, err := svc.Convert(ctx, models.ConvertRequest{
		ClaimTokenId: *claimFlag,
		Holder:       *holderFlag,
		Amount:       *amountFlag,
	})
	if err != nil {
		services.Close()
		common.Exit(logger, "Conversion failed", err)
	}

	kind := "partial"
	if result.Full {
		kind = "full"
	}
	fmt.Printf("Converted %d (%s)\n", result.Converted, kind)
	fmt.Printf("  Remaining:           %d\n", result.Option.Amount)
	fmt.Printf("  Open options:        %d\n", result.OptionCount)
	fmt.Printf("  Total option amount: %d\n", result.TotalOptionAmount)
}
