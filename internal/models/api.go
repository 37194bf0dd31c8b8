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

// DepositRequest is the input of a deposit
type DepositRequest struct {
	Depositor string `json:"depositor"`
	Amount    uint64 `json:"amount"`
	Duration  uint32 `json:"option_duration"`
}

// IssueOptionRequest materializes a deposit receipt into an option record
type IssueOptionRequest struct {
	Depositor    string `json:"depositor"`
	ClaimTokenId string `json:"claim_token_id"`
}

// ConvertRequest converts part or all of an option into protocol tokens
type ConvertRequest struct {
	ClaimTokenId string `json:"claim_token_id"`
	Holder       string `json:"holder"`
	Amount       uint64 `json:"amount"`
}

// TransferRequest hands an open option to a new holder. Notes, when set, are
// moved along with the claim instrument.
type TransferRequest struct {
	ClaimTokenId string `json:"claim_token_id"`
	From         string `json:"from"`
	To           string `json:"to"`
	Notes        uint64 `json:"notes"`
}

// CloseRequest reclaims the storage of a fully converted option
type CloseRequest struct {
	ClaimTokenId string `json:"claim_token_id"`
	Receiver     string `json:"receiver"`
}

// LockUpdate carries the lock flags to overwrite; nil fields are left untouched
type LockUpdate struct {
	Locked        *bool `json:"locked,omitempty"`
	DepositLocked *bool `json:"deposit_locked,omitempty"`
	ConvertLocked *bool `json:"convert_locked,omitempty"`
}

// Empty reports whether the update carries no flags at all
func (u LockUpdate) Empty() bool {
	return u.Locked == nil && u.DepositLocked == nil && u.ConvertLocked == nil
}

// DepositResult represents the result of a deposit
type DepositResult struct {
	Receipt      *DepositReceipt `json:"receipt"`
	TokensMinted uint64          `json:"tokens_minted"`
	Nav          string          `json:"nav"`
}

// ConvertResult represents the result of a conversion
type ConvertResult struct {
	Option            *OptionRecord `json:"option"`
	Converted         uint64        `json:"converted"`
	Full              bool          `json:"full"`
	OptionCount       uint64        `json:"option_count"`
	TotalOptionAmount uint64        `json:"total_option_amount"`
}

// ReconcileResult compares the config counters with the option records
type ReconcileResult struct {
	RecordedCount   uint64 `json:"recorded_count"`
	RecordedTotal   uint64 `json:"recorded_total"`
	CalculatedCount uint64 `json:"calculated_count"`
	CalculatedTotal uint64 `json:"calculated_total"`
	SpentRecords    uint64 `json:"spent_records"`
}

// Consistent reports whether the recorded counters match the calculated ones
func (r ReconcileResult) Consistent() bool {
	return r.RecordedCount == r.CalculatedCount && r.RecordedTotal == r.CalculatedTotal
}

// ErrorResponse is the JSON body of a failed API request
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class"`
}
