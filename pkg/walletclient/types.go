package walletclient

import "time"

// Error codes returned by the wallet API.
const (
	ErrCodeUnexpected          = "UNEXPECTED_ERROR"
	ErrCodeNotAuthorized       = "NOT_AUTHORIZED"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeDuplicateTx         = "TRANSACTION_ALREADY_EXISTS"
	ErrCodeLimitReached        = "BET_LIMIT_REACHED"
)

// APIError is an error response from the wallet API.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Response wraps a wallet API response with either result or error.
type Response[T any] struct {
	Result *T        `json:"result,omitempty"`
	Error  *APIError `json:"error,omitempty"`
}

// DebitRequest is the request body for /debit.
type DebitRequest struct {
	SiteCode      string `json:"siteCode"`
	UserID        string `json:"userId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"` // cents
}

// DebitResult is the result of a debit operation.
type DebitResult struct {
	TransactionID string `json:"transactionId"`
	Balance       int64  `json:"balance"` // cents
}

// CreditRequest is the request body for /credit.
type CreditRequest struct {
	SiteCode      string `json:"siteCode"`
	UserID        string `json:"userId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
	Currency      string `json:"currency"`
	Amount        int64  `json:"amount"` // cents
	IsJackpotWin  bool   `json:"isJackpotWin"`
}

// CreditResult is the result of a credit operation.
type CreditResult struct {
	TransactionID string `json:"transactionId"`
	Balance       int64  `json:"balance"` // cents
}

// BalanceRequest is the request body for /balance.
type BalanceRequest struct {
	SiteCode string `json:"siteCode"`
	UserID   string `json:"userId"`
}

// BalanceResult is the result of a balance query.
type BalanceResult struct {
	Balance  int64  `json:"balance"` // cents
	Currency string `json:"currency"`
}

// CancelRequest is the request body for /cancel, voiding a failed
// debit or credit by its transaction ID.
type CancelRequest struct {
	SiteCode      string `json:"siteCode"`
	UserID        string `json:"userId"`
	RoundID       string `json:"roundId"`
	TransactionID string `json:"transactionId"`
}

// CancelResult is the result of a cancel operation.
type CancelResult struct {
	TransactionID string `json:"transactionId"`
}

// Config holds the configuration for the wallet client.
type Config struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	SiteCode   string
	Timeout    time.Duration
	RetryCount int
}

// DefaultConfig returns a default client configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:    30 * time.Second,
		RetryCount: 3,
	}
}
