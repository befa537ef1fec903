package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/alexbotov/roundengine/internal/game"
	"github.com/alexbotov/roundengine/pkg/walletclient"
)

// Remote adapts the platform wallet API to the engine's Ledger
// interface, for deployments where the operator owns the balances.
// Wallet INSUFFICIENT_BALANCE errors surface as
// game.ErrInsufficientFunds so the engine treats both ledgers the
// same.
type Remote struct {
	client   *walletclient.Client
	currency string
}

var _ game.Ledger = (*Remote)(nil)

// NewRemote creates a wallet-backed ledger.
func NewRemote(client *walletclient.Client, currency string) *Remote {
	return &Remote{client: client, currency: currency}
}

// Balance returns the wallet balance in cents.
func (r *Remote) Balance(ctx context.Context, userID string) (int64, error) {
	result, err := r.client.Balance(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("wallet balance query failed: %w", err)
	}
	return result.Balance, nil
}

// Debit removes amount from the wallet balance.
func (r *Remote) Debit(ctx context.Context, userID string, amount int64) (int64, error) {
	result, err := r.client.Debit(ctx, &walletclient.DebitRequest{
		UserID:        userID,
		TransactionID: uuid.New().String(),
		Currency:      r.currency,
		Amount:        amount,
	})
	if err != nil {
		var apiErr *walletclient.APIError
		if errors.As(err, &apiErr) && apiErr.Code == walletclient.ErrCodeInsufficientBalance {
			return 0, game.ErrInsufficientFunds
		}
		return 0, fmt.Errorf("wallet debit failed: %w", err)
	}
	return result.Balance, nil
}

// Credit adds amount to the wallet balance.
func (r *Remote) Credit(ctx context.Context, userID string, amount int64) (int64, error) {
	result, err := r.client.Credit(ctx, &walletclient.CreditRequest{
		UserID:        userID,
		TransactionID: uuid.New().String(),
		Currency:      r.currency,
		Amount:        amount,
	})
	if err != nil {
		return 0, fmt.Errorf("wallet credit failed: %w", err)
	}
	return result.Balance, nil
}
