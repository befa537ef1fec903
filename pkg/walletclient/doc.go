// Package walletclient provides a client for the platform wallet API,
// used when the round engine runs against an operator-hosted wallet
// instead of its own database ledger.
//
// Every request is a signed JSON POST: the body is HMAC-SHA256 signed
// with the shared API secret and the signature travels in the
// x-api-hmac header, so the wallet can reject tampered or replayed
// bodies from anyone without the secret.
//
// The engine settles money per round: a debit when a round or spin is
// paid for, a credit when a payout lands. Both carry the round ID and
// an engine-generated transaction ID so the wallet can deduplicate
// retries of the same settlement.
//
// Usage:
//
//	client := walletclient.New(&walletclient.Config{
//		BaseURL:   "https://wallet.example.com/api",
//		APIKey:    "engine-key",
//		APISecret: "engine-secret",
//		SiteCode:  "site-1",
//	})
//
//	result, err := client.Debit(ctx, &walletclient.DebitRequest{
//		UserID:        "user-42",
//		RoundID:       roundID,
//		TransactionID: txID,
//		Amount:        150,
//	})
package walletclient
