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

package models

import "context"

type operationContextKey struct{}

// OperationContext carries the identity of the ledger operation currently
// executing so collaborators can tag the asset movements they record with it.
type OperationContext struct {
	OperationId string
	Kind        string
	Subject     string
}

// WithOperationContext attaches operation data to a context.
func WithOperationContext(ctx context.Context, oc *OperationContext) context.Context {
	return context.WithValue(ctx, operationContextKey{}, oc)
}

// GetOperationContext retrieves operation data from context, or nil if absent.
func GetOperationContext(ctx context.Context) *OperationContext {
	oc, _ := ctx.Value(operationContextKey{}).(*OperationContext)
	return oc
}
