package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// appendTransferEntries writes the double-entry audit rows for one committed
// operation: a wallet-side row for the acting user and the mirrored
// counterparty row, sharing one tx group id. Deltas are from the acting
// user's point of view. Game logic never reads this table.
func appendTransferEntries(ctx context.Context, tx pgx.Tx, action, userID, counterparty, ticker string, cashDelta float64, shareDelta int64) error {
	txID := uuid.NewString()
	var tickerVal any
	if ticker != "" {
		tickerVal = ticker
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO transfers (tx_group_id, user_id, account, action, ticker, cash_delta, share_delta)
		VALUES
		($1, $2, 'wallet', $3, $4, $5, $6),
		($1, $7, 'counterparty', $3, $4, $8, $9)
	`, txID, userID, action, tickerVal, cashDelta, shareDelta, counterparty, -cashDelta, -shareDelta)
	return err
}
