package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"note-option-ledger-go/internal/api"
	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/config"
	"note-option-ledger-go/internal/models"

	"go.uber.org/zap"
)

const usage = `usage: admin <command> [flags]

commands:
  locks   change protocol locks (-caller, -locked, -deposit-locked, -convert-locked)
  close   close a fully converted option (-claim, -receiver)
  token   print an admin bearer token for ledgerd (-subject, -ttl)
`

// optionalBool is a flag that records whether it was set at all.
type optionalBool struct {
	value *bool
}

func (o *optionalBool) String() string {
	if o.value == nil {
		return ""
	}
	return strconv.FormatBool(*o.value)
}

func (o *optionalBool) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

func (o *optionalBool) IsBoolFlag() bool { return true }

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	switch os.Args[1] {
	case "locks":
		runLocks(cfg, logger, os.Args[2:])
	case "close":
		runClose(cfg, logger, os.Args[2:])
	case "token":
		runToken(cfg, logger, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func openService(ctx context.Context, cfg *models.Config, logger *zap.Logger) (*common.Services, *api.LedgerService) {
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		common.Exit(logger, "Failed to initialize services", err)
	}
	return services, api.NewLedgerService(services.Engine, services.DbService)
}

func runLocks(cfg *models.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("locks", flag.ExitOnError)
	caller := fs.String("caller", "", "Identity performing the change; must be the protocol authority (required)")
	var locked, depositLocked, convertLocked optionalBool
	fs.Var(&locked, "locked", "Master lock")
	fs.Var(&depositLocked, "deposit-locked", "Deposit lock")
	fs.Var(&convertLocked, "convert-locked", "Convert lock")
	_ = fs.Parse(args)

	ctx := context.Background()
	services, svc := openService(ctx, cfg, logger)
	defer services.Close()

	protocolConfig, err := svc.UpdateLocks(ctx, *caller, models.LockUpdate{
		Locked:        locked.value,
		DepositLocked: depositLocked.value,
		ConvertLocked: convertLocked.value,
	})
	if err != nil {
		services.Close()
		common.Exit(logger, "Lock update failed", err)
	}

	fmt.Printf("locked=%t deposit_locked=%t convert_locked=%t\n",
		protocolConfig.Locked, protocolConfig.DepositLocked, protocolConfig.ConvertLocked)
}

func runClose(cfg *models.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("close", flag.ExitOnError)
	claim := fs.String("claim", "", "Claim token id of the spent option (required)")
	receiver := fs.String("receiver", "", "Receiver of the reclaimed storage; must be the protocol authority (required)")
	_ = fs.Parse(args)

	ctx := context.Background()
	services, svc := openService(ctx, cfg, logger)
	defer services.Close()

	if err := svc.CloseOption(ctx, models.CloseRequest{ClaimTokenId: *claim, Receiver: *receiver}); err != nil {
		services.Close()
		common.Exit(logger, "Close failed", err)
	}
	fmt.Printf("Closed option %s, storage returned to %s\n", *claim, *receiver)
}

func runToken(cfg *models.Config, logger *zap.Logger, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	subject := fs.String("subject", "", "Admin identity carried by the token (required)")
	ttl := fs.Duration("ttl", time.Hour, "Token lifetime")
	_ = fs.Parse(args)

	if *subject == "" {
		common.Exit(logger, "Invalid token request", fmt.Errorf("-subject is required"))
	}
	token, err := api.IssueToken(cfg.Http.AdminJwtSecret, *subject, *ttl)
	if err != nil {
		common.Exit(logger, "Failed to issue token", err)
	}
	fmt.Println(token)
}
