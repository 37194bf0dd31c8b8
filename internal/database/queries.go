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

package database

const (
	// Protocol config queries
	queryGetConfig = `
		SELECT authority, note_asset_id, token_asset_id, collection_id, fee_bps,
		       option_count, total_option_amount, deposit_nonce,
		       locked, deposit_locked, convert_locked, version, updated_at
		FROM protocol_config
		WHERE id = 1`

	queryInsertConfig = `
		INSERT INTO protocol_config (
			id, authority, note_asset_id, token_asset_id, collection_id, fee_bps,
			option_count, total_option_amount, deposit_nonce,
			locked, deposit_locked, convert_locked, version, updated_at
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`

	queryUpdateConfig = `
		UPDATE protocol_config
		SET authority = ?, fee_bps = ?, option_count = ?, total_option_amount = ?, deposit_nonce = ?,
		    locked = ?, deposit_locked = ?, convert_locked = ?,
		    version = version + 1, updated_at = ?
		WHERE id = 1 AND version = ?`

	// Treasury queries
	queryGetTreasury = `
		SELECT authority, total_deposited, version, updated_at
		FROM treasury
		WHERE id = 1`

	queryInsertTreasury = `
		INSERT INTO treasury (id, authority, total_deposited, version, updated_at)
		VALUES (1, ?, ?, 1, ?)`

	queryUpdateTreasury = `
		UPDATE treasury
		SET authority = ?, total_deposited = ?, version = version + 1, updated_at = ?
		WHERE id = 1 AND version = ?`

	// Receipt queries
	queryGetReceipt = `
		SELECT depositor, initialized, nft_issued, amount, expiration, updated_at
		FROM deposit_receipts
		WHERE depositor = ?`

	queryUpsertReceipt = `
		INSERT INTO deposit_receipts (depositor, initialized, nft_issued, amount, expiration, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(depositor) DO UPDATE SET
			initialized = excluded.initialized,
			nft_issued = excluded.nft_issued,
			amount = excluded.amount,
			expiration = excluded.expiration,
			updated_at = excluded.updated_at`

	queryGetStaleReceipts = `
		SELECT depositor, initialized, nft_issued, amount, expiration, updated_at
		FROM deposit_receipts
		WHERE initialized = 1 AND expiration < ?
		ORDER BY expiration, depositor`

	// Option queries
	queryGetOption = `
		SELECT claim_token_id, owner, amount, original_amount, expiration, created_at, updated_at
		FROM option_records
		WHERE claim_token_id = ?`

	queryInsertOption = `
		INSERT INTO option_records (claim_token_id, owner, amount, original_amount, expiration, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryUpdateOption = `
		UPDATE option_records
		SET owner = ?, amount = ?, updated_at = ?
		WHERE claim_token_id = ?`

	queryDeleteOption = `
		DELETE FROM option_records WHERE claim_token_id = ?`

	queryListOptions = `
		SELECT claim_token_id, owner, amount, original_amount, expiration, created_at, updated_at
		FROM option_records`

	// Event queries
	queryInsertEvent = `
		INSERT INTO ledger_events (id, operation_id, kind, subject, amount, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	queryListEvents = `
		SELECT id, operation_id, kind, subject, amount, detail, created_at
		FROM ledger_events
		WHERE (? = '' OR subject = ?)
		ORDER BY seq DESC
		LIMIT ?`

	// Claim instrument queries
	queryInsertClaim = `
		INSERT INTO claim_instruments (id, holder, collection_id, name, symbol, uri, verified, burned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?)`

	queryGetClaim = `
		SELECT id, holder, collection_id, name, symbol, uri, verified, burned, created_at
		FROM claim_instruments
		WHERE id = ?`

	queryVerifyClaim = `
		UPDATE claim_instruments SET verified = 1 WHERE id = ?`

	queryBurnClaim = `
		UPDATE claim_instruments SET burned = 1 WHERE id = ? AND burned = 0`

	queryTransferClaim = `
		UPDATE claim_instruments SET holder = ? WHERE id = ? AND holder = ? AND burned = 0`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM account_balances
		WHERE account_id = ? AND asset = ?`

	queryGetAllAccountBalances = `
		SELECT id, account_id, asset, balance, last_transaction_id, version, updated_at
		FROM account_balances
		WHERE account_id = ? AND balance != '0'
		ORDER BY asset`

	queryGetTransactionAmounts = `
		SELECT amount
		FROM transactions
		WHERE account_id = ? AND asset = ? AND status = 'confirmed'`

	// Transaction queries
	queryCheckDuplicateTransaction = `
		SELECT id FROM transactions WHERE idempotency_key = ? LIMIT 1`

	queryGetAccountBalance = `
		SELECT id, balance, version
		FROM account_balances
		WHERE account_id = ? AND asset = ?`

	queryInsertAccountBalance = `
		INSERT INTO account_balances (id, account_id, asset, balance, version)
		VALUES (?, ?, ?, ?, ?)`

	queryInsertTransaction = `
		INSERT INTO transactions (
			id, account_id, asset, transaction_type, amount, balance_before, balance_after,
			idempotency_key, operation_id, reference, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, account_id, asset, transaction_type, amount, balance_before, balance_after,
		          operation_id, reference, status, created_at`

	queryUpdateAccountBalance = `
		UPDATE account_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
		WHERE account_id = ? AND asset = ? AND version = ?`

	queryInsertJournalEntry = `
		INSERT INTO journal_entries (id, transaction_id, account_type, account_id, debit_amount, credit_amount)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetTransactionHistory = `
		SELECT id, account_id, asset, transaction_type, amount, balance_before, balance_after,
		       operation_id, reference, status, created_at
		FROM transactions
		WHERE account_id = ? AND asset = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?`

	queryGetOperationTransactions = `
		SELECT id, account_id, asset, transaction_type, amount, balance_before, balance_after,
		       operation_id, reference, status, created_at
		FROM transactions
		WHERE operation_id = ?
		ORDER BY rowid`
)
