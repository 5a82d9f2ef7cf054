package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketplace-settlement/config"
	"marketplace-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

const defaultDispatchTimeout = 15 * time.Second

// BankTransferClient implements ports.BankTransferProvider against the
// banking collaborator's HTTP API. Every dispatch carries its own bounded
// timeout so a slow bank never holds a request open indefinitely; callers
// treat a timeout as "processing, confirm later", not as failure.
type BankTransferClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewBankTransferClient creates a bank transfer client from config.
func NewBankTransferClient(cfg config.TransferConfig, log zerolog.Logger) *BankTransferClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultDispatchTimeout
	}
	return &BankTransferClient{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "bank_transfer").Logger(),
	}
}

type transferRequest struct {
	PayoutID      string `json:"payout_id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	BankName      string `json:"bank_name"`
	AccountHolder string `json:"account_holder"`
	AccountMasked string `json:"account_masked"`
}

type transferResponse struct {
	TransferRef string `json:"transfer_ref"`
	Status      string `json:"status"`
	Message     string `json:"message"`
}

// Dispatch submits a transfer instruction and returns the bank's transfer
// reference. PayoutID doubles as the idempotency key so redelivering the
// same instruction never produces a second transfer.
func (c *BankTransferClient) Dispatch(ctx context.Context, instr ports.TransferInstruction) (string, error) {
	body, err := json.Marshal(transferRequest{
		PayoutID:      instr.PayoutID.String(),
		Amount:        instr.Amount,
		Currency:      instr.Currency,
		BankName:      instr.BankName,
		AccountHolder: instr.AccountHolder,
		AccountMasked: instr.AccountMasked,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling transfer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building transfer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", instr.PayoutID.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("dispatching transfer: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn().
			Int("status", resp.StatusCode).
			Str("payout_id", instr.PayoutID.String()).
			Msg("bank transfer dispatch rejected")
		return "", fmt.Errorf("bank transfer dispatch: unexpected status %d", resp.StatusCode)
	}

	var tr transferResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decoding transfer response: %w", err)
	}
	if tr.TransferRef == "" {
		return "", fmt.Errorf("bank transfer dispatch: empty transfer_ref in response")
	}

	c.log.Info().
		Str("payout_id", instr.PayoutID.String()).
		Str("transfer_ref", tr.TransferRef).
		Msg("bank transfer dispatched")

	return tr.TransferRef, nil
}
