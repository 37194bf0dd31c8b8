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
	"errors"
	"flag"
	"fmt"

	"note-option-ledger-go/internal/common"
	"note-option-ledger-go/internal/config"
	"note-option-ledger-go/internal/ledger"

	"go.uber.org/zap"
)

func main() {
	protocolFlag := flag.String("protocol", "", "Path to the protocol bootstrap file (default: PROTOCOL_FILE or protocol.yaml)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		common.ConfigError(err)
	}
	if *protocolFlag != "" {
		cfg.ProtocolFile = *protocolFlag
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.Logging)
	defer loggerCleanup()

	ctx := context.Background()

	logger.Info("Starting protocol setup",
		zap.String("database", cfg.Database.Path),
		zap.String("protocol_file", cfg.ProtocolFile))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	protocolConfig, err := services.Engine.Initialize(ctx, *services.Settings)
	if errors.Is(err, ledger.ErrAlreadyInitialized) {
		logger.Info("Protocol already initialized, nothing to do")
		protocolConfig, err = services.Engine.GetConfig(ctx)
	}
	if err != nil {
		logger.Fatal("Failed to initialize protocol", zap.Error(err))
	}

	common.PrintHeader("PROTOCOL CONFIG", common.DefaultWidth)
	fmt.Printf("Authority:      %s\n", orNone(protocolConfig.Authority))
	fmt.Printf("Note asset:     %s\n", protocolConfig.NoteAssetId)
	fmt.Printf("Token asset:    %s\n", protocolConfig.TokenAssetId)
	fmt.Printf("Collection:     %s\n", protocolConfig.CollectionId)
	fmt.Printf("Custody:        %s\n", services.Engine.CustodyAccount())
	if protocolConfig.FeeBps != nil {
		fmt.Printf("Fee (bps):      %d\n", *protocolConfig.FeeBps)
	}
	common.PrintFooter("Setup complete", common.DefaultWidth)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
