package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/services"
)

// RejectedError is a 4xx answer from the server. The entry stays queued and
// is retried with the same key.
type RejectedError struct {
	Status  int
	Message string
}

func (e RejectedError) Error() string {
	return fmt.Sprintf("server rejected operation (%d): %s", e.Status, e.Message)
}

// HTTPSubmitter posts operations to the ledger API.
type HTTPSubmitter struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

type submitResponse struct {
	Transaction models.LedgerTransaction `json:"transaction"`
	Duplicate   bool                     `json:"duplicate"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s HTTPSubmitter) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (s HTTPSubmitter) Submit(ctx context.Context, op models.LedgerRequest) (models.LedgerTransaction, error) {
	body, err := json.Marshal(op)
	if err != nil {
		return models.LedgerTransaction{}, fmt.Errorf("encode operation: %w", err)
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/api/ledger/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return models.LedgerTransaction{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", op.IdempotencyKey)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return models.LedgerTransaction{}, domain.NetworkUnavailableError{Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.LedgerTransaction{}, domain.NetworkUnavailableError{Err: err}
	}

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusRequestTimeout, resp.StatusCode == http.StatusTooManyRequests:
		return models.LedgerTransaction{}, domain.NetworkUnavailableError{Err: fmt.Errorf("server answered %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		var er errorResponse
		_ = json.Unmarshal(raw, &er)
		return models.LedgerTransaction{}, RejectedError{Status: resp.StatusCode, Message: er.Error}
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.LedgerTransaction{}, fmt.Errorf("decode ledger response: %w", err)
	}
	return out.Transaction, nil
}

// LedgerSubmitter applies operations in process. With AgentID set, top-ups
// for other accounts go through the agent deposit flow.
type LedgerSubmitter struct {
	Ledger   services.LedgerService
	Deposits services.DepositService
	AgentID  string
}

func (s LedgerSubmitter) Submit(ctx context.Context, op models.LedgerRequest) (models.LedgerTransaction, error) {
	if s.AgentID != "" && op.Type == models.TxTopUp && op.AccountID != s.AgentID {
		out, err := s.Deposits.RecordDeposit(ctx, s.AgentID, op)
		if err != nil {
			return models.LedgerTransaction{}, err
		}
		return out.TopUp.Transaction, nil
	}
	out, err := s.Ledger.Append(ctx, op)
	if err != nil {
		return models.LedgerTransaction{}, err
	}
	return out.Transaction, nil
}
