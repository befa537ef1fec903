package walletclient

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testAPIKey    = "test-api-key"
	testAPISecret = "test-api-secret"
	testSiteCode  = "testsite"
)

// mockServer creates a test server that validates HMAC and returns the given response
func mockServer(t *testing.T, expectedPath string, validateBody func(body []byte) error, response interface{}) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Validate method
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Validate path
		if r.URL.Path != expectedPath {
			t.Errorf("Expected path %s, got %s", expectedPath, r.URL.Path)
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		// Validate content type
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
		}

		// Validate API key header
		apiKey := r.Header.Get("x-api-key")
		if apiKey != testAPIKey {
			t.Errorf("Expected API key %s, got %s", testAPIKey, apiKey)
		}

		// Read body
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("Failed to read body: %v", err)
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		// Validate HMAC
		expectedHMAC := computeTestHMAC(body)
		actualHMAC := r.Header.Get("x-api-hmac")
		if actualHMAC != expectedHMAC {
			t.Errorf("HMAC mismatch: expected %s, got %s", expectedHMAC, actualHMAC)
		}

		// Validate body content if provided
		if validateBody != nil {
			if err := validateBody(body); err != nil {
				t.Errorf("Body validation failed: %v", err)
				http.Error(w, "Bad request", http.StatusBadRequest)
				return
			}
		}

		// Return response
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}))
}

// computeTestHMAC computes HMAC for testing
func computeTestHMAC(body []byte) string {
	h := hmac.New(sha256.New, []byte(testAPISecret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// newTestClient creates a client configured for testing
func newTestClient(baseURL string) *Client {
	return New(&Config{
		BaseURL:    baseURL,
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
		SiteCode:   testSiteCode,
		Timeout:    5 * time.Second,
		RetryCount: 1,
	})
}

func TestDebit_Success(t *testing.T) {
	expectedResponse := Response[DebitResult]{
		Result: &DebitResult{
			TransactionID: "tx-debit-123",
			Balance:       90000,
		},
	}

	server := mockServer(t, "/debit", func(body []byte) error {
		var req DebitRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		if req.SiteCode != testSiteCode {
			t.Errorf("Expected siteCode '%s', got '%s'", testSiteCode, req.SiteCode)
		}
		if req.UserID != "user-456" {
			t.Errorf("Expected userId 'user-456', got '%s'", req.UserID)
		}
		if req.RoundID != "round-1" {
			t.Errorf("Expected roundId 'round-1', got '%s'", req.RoundID)
		}
		if req.Amount != 10000 {
			t.Errorf("Expected amount 10000, got %d", req.Amount)
		}
		return nil
	}, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Debit(context.Background(), &DebitRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "tx-1",
		Currency:      "USD",
		Amount:        10000,
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.TransactionID != "tx-debit-123" {
		t.Errorf("Expected transactionId 'tx-debit-123', got '%s'", result.TransactionID)
	}
	if result.Balance != 90000 {
		t.Errorf("Expected balance 90000, got %d", result.Balance)
	}
}

func TestDebit_InsufficientBalance(t *testing.T) {
	expectedResponse := Response[DebitResult]{
		Error: &APIError{
			Code:    ErrCodeInsufficientBalance,
			Message: "Insufficient balance.",
		},
	}

	server := mockServer(t, "/debit", nil, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Debit(context.Background(), &DebitRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "tx-1",
		Currency:      "USD",
		Amount:        99999900,
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}

	if apiErr.Code != ErrCodeInsufficientBalance {
		t.Errorf("Expected error code '%s', got '%s'", ErrCodeInsufficientBalance, apiErr.Code)
	}
}

func TestDebit_DuplicateTransaction(t *testing.T) {
	expectedResponse := Response[DebitResult]{
		Error: &APIError{
			Code:    ErrCodeDuplicateTx,
			Message: "Transaction already exists.",
			Data: map[string]interface{}{
				"transactionId": "existing-tx-123",
			},
		},
	}

	server := mockServer(t, "/debit", nil, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Debit(context.Background(), &DebitRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "existing-tx",
		Currency:      "USD",
		Amount:        10000,
	})

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}

	if apiErr.Code != ErrCodeDuplicateTx {
		t.Errorf("Expected error code '%s', got '%s'", ErrCodeDuplicateTx, apiErr.Code)
	}

	if apiErr.Data["transactionId"] != "existing-tx-123" {
		t.Errorf("Expected transactionId in error data")
	}
}

func TestCredit_Success(t *testing.T) {
	expectedResponse := Response[CreditResult]{
		Result: &CreditResult{
			TransactionID: "tx-credit-123",
			Balance:       110000,
		},
	}

	server := mockServer(t, "/credit", func(body []byte) error {
		var req CreditRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		if req.Amount != 20000 {
			t.Errorf("Expected amount 20000, got %d", req.Amount)
		}
		if req.IsJackpotWin {
			t.Error("Expected isJackpotWin to be false")
		}
		return nil
	}, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Credit(context.Background(), &CreditRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "tx-2",
		Currency:      "USD",
		Amount:        20000,
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.TransactionID != "tx-credit-123" {
		t.Errorf("Expected transactionId 'tx-credit-123', got '%s'", result.TransactionID)
	}
	if result.Balance != 110000 {
		t.Errorf("Expected balance 110000, got %d", result.Balance)
	}
}

func TestCredit_JackpotWin(t *testing.T) {
	expectedResponse := Response[CreditResult]{
		Result: &CreditResult{
			TransactionID: "tx-jackpot-123",
			Balance:       1100000,
		},
	}

	server := mockServer(t, "/credit", func(body []byte) error {
		var req CreditRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		if !req.IsJackpotWin {
			t.Error("Expected isJackpotWin to be true")
		}
		return nil
	}, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Credit(context.Background(), &CreditRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "tx-jackpot",
		Currency:      "USD",
		Amount:        1000000,
		IsJackpotWin:  true,
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Balance != 1100000 {
		t.Errorf("Expected balance 1100000, got %d", result.Balance)
	}
}

func TestBalance_Success(t *testing.T) {
	expectedResponse := Response[BalanceResult]{
		Result: &BalanceResult{
			Balance:  500050,
			Currency: "USD",
		},
	}

	server := mockServer(t, "/balance", func(body []byte) error {
		var req BalanceRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		if req.SiteCode != testSiteCode {
			t.Errorf("Expected siteCode '%s', got '%s'", testSiteCode, req.SiteCode)
		}
		if req.UserID != "user-456" {
			t.Errorf("Expected userId 'user-456', got '%s'", req.UserID)
		}
		return nil
	}, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Balance(context.Background(), "user-456")

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.Balance != 500050 {
		t.Errorf("Expected balance 500050, got %d", result.Balance)
	}
	if result.Currency != "USD" {
		t.Errorf("Expected currency 'USD', got '%s'", result.Currency)
	}
}

func TestBalance_UserNotFound(t *testing.T) {
	expectedResponse := Response[BalanceResult]{
		Error: &APIError{
			Code:    ErrCodeUserNotFound,
			Message: "User not found.",
		},
	}

	server := mockServer(t, "/balance", nil, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.Balance(context.Background(), "nonexistent-user")

	if err == nil {
		t.Fatal("Expected error, got nil")
	}

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected APIError, got %T", err)
	}

	if apiErr.Code != ErrCodeUserNotFound {
		t.Errorf("Expected error code '%s', got '%s'", ErrCodeUserNotFound, apiErr.Code)
	}
}

func TestCancel_Success(t *testing.T) {
	expectedResponse := Response[CancelResult]{
		Result: &CancelResult{
			TransactionID: "cancelled-tx-123",
		},
	}

	server := mockServer(t, "/cancel", func(body []byte) error {
		var req CancelRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return err
		}
		if req.RoundID != "round-1" {
			t.Errorf("Expected roundId 'round-1', got '%s'", req.RoundID)
		}
		if req.TransactionID != "tx-to-cancel" {
			t.Errorf("Expected transactionId 'tx-to-cancel', got '%s'", req.TransactionID)
		}
		return nil
	}, expectedResponse)
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.Cancel(context.Background(), &CancelRequest{
		UserID:        "user-456",
		RoundID:       "round-1",
		TransactionID: "tx-to-cancel",
	})

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if result.TransactionID != "cancelled-tx-123" {
		t.Errorf("Expected transactionId 'cancelled-tx-123', got '%s'", result.TransactionID)
	}
}

func TestRetryAfterConnectionDrop(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			// Drop the connection so the client sees a transport error
			hj, ok := w.(http.Hijacker)
			if !ok {
				t.Fatal("Server does not support hijacking")
			}
			conn, _, err := hj.Hijack()
			if err != nil {
				t.Fatalf("Hijack failed: %v", err)
			}
			conn.Close()
			return
		}

		// Second attempt must still carry the full signed body
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("Failed to read body on retry: %v", err)
		}
		if len(body) == 0 {
			t.Error("Expected non-empty body on retry")
		}
		if r.Header.Get("x-api-hmac") != computeTestHMAC(body) {
			t.Error("HMAC mismatch on retry")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response[BalanceResult]{
			Result: &BalanceResult{Balance: 12345, Currency: "USD"},
		})
	}))
	defer server.Close()

	client := New(&Config{
		BaseURL:    server.URL,
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
		SiteCode:   testSiteCode,
		Timeout:    5 * time.Second,
		RetryCount: 2,
	})

	result, err := client.Balance(context.Background(), "user-456")

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Balance != 12345 {
		t.Errorf("Expected balance 12345, got %d", result.Balance)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 attempts, got %d", atomic.LoadInt32(&calls))
	}
}

func TestHMACComputation(t *testing.T) {
	client := New(&Config{
		APISecret: "my-secret-key",
	})

	body := []byte(`{"test":"data"}`)
	hmacResult := client.computeHMAC(body)

	// Compute expected HMAC
	h := hmac.New(sha256.New, []byte("my-secret-key"))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))

	if hmacResult != expected {
		t.Errorf("HMAC mismatch: expected %s, got %s", expected, hmacResult)
	}
}

func TestClient_NetworkError(t *testing.T) {
	// Use invalid URL to simulate network error
	client := New(&Config{
		BaseURL:    "http://localhost:99999",
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
		SiteCode:   testSiteCode,
		Timeout:    1 * time.Second,
		RetryCount: 1,
	})

	_, err := client.Balance(context.Background(), "user-456")

	if err == nil {
		t.Fatal("Expected error for network failure, got nil")
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second) // Delay response
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Balance(ctx, "user-456")

	if err == nil {
		t.Fatal("Expected context deadline error, got nil")
	}
}

func TestAPIError_Error(t *testing.T) {
	apiErr := &APIError{
		Code:    ErrCodeInsufficientBalance,
		Message: "Not enough money",
	}

	if apiErr.Error() != "Not enough money" {
		t.Errorf("Expected error message 'Not enough money', got '%s'", apiErr.Error())
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout 30s, got %v", config.Timeout)
	}
	if config.RetryCount != 3 {
		t.Errorf("Expected default retry count 3, got %d", config.RetryCount)
	}
}

func TestNewWithHTTPClient(t *testing.T) {
	customClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	config := &Config{
		BaseURL:   "http://localhost:8080",
		APIKey:    "key",
		APISecret: "secret",
		SiteCode:  "site",
	}

	client := NewWithHTTPClient(config, customClient)

	if client.httpClient != customClient {
		t.Error("Expected custom HTTP client to be used")
	}
}
