// Package gateway holds the payment-processor client. Verification is the
// only call the billing flow needs: given a transaction reference, ask the
// processor whether the charge went through.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Status values reported by the processor for a transaction.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusPending = "pending"
)

// VerifyResult is the processor's verdict on a transaction reference.
type VerifyResult struct {
	Reference string  `json:"reference"`
	Status    string  `json:"status"`
	Amount    float64 `json:"amount"`
	Channel   string  `json:"channel"`
	PaidAt    string  `json:"paid_at"`
	Message   string  `json:"gateway_response"`
}

type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

func NewClient(baseURL, secretKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Verify asks the processor for the state of a transaction. Amounts come
// back in the minor currency unit and are converted here.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("transaction reference is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/transaction/verify/"+reference, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			Reference       string  `json:"reference"`
			Status          string  `json:"status"`
			Amount          float64 `json:"amount"` // minor units
			Channel         string  `json:"channel"`
			PaidAt          string  `json:"paid_at"`
			GatewayResponse string  `json:"gateway_response"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("parse gateway response: %w", err)
	}
	if !envelope.Status {
		return nil, fmt.Errorf("gateway verification failed: %s", envelope.Message)
	}

	return &VerifyResult{
		Reference: envelope.Data.Reference,
		Status:    envelope.Data.Status,
		Amount:    envelope.Data.Amount / 100,
		Channel:   envelope.Data.Channel,
		PaidAt:    envelope.Data.PaidAt,
		Message:   envelope.Data.GatewayResponse,
	}, nil
}
