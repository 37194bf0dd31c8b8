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

package api

import (
	"context"
	"fmt"

	"note-option-ledger-go/internal/database"
	"note-option-ledger-go/internal/ledger"
)

// LedgerService is the entry point used by the HTTP handlers and the CLIs
type LedgerService struct {
	engine *ledger.Engine
	db     *database.Service
}

func NewLedgerService(engine *ledger.Engine, db *database.Service) *LedgerService {
	return &LedgerService{
		engine: engine,
		db:     db,
	}
}

// Engine exposes the underlying ledger engine.
func (s *LedgerService) Engine() *ledger.Engine { return s.engine }

func (s *LedgerService) HealthCheck(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	if _, err := s.engine.GetConfig(ctx); err != nil {
		return fmt.Errorf("protocol config check failed: %w", err)
	}
	return nil
}
