package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// GatewayClient talks to the M-Pesa payment gateway adapter. The adapter owns
// the Daraja session; this client only initiates collections and payouts and
// trusts the signed confirmation callback for state.
type GatewayClient struct {
	baseURL    string
	shortcode  string
	httpClient *http.Client
	log        *zap.Logger
}

func NewGatewayClient(baseURL, shortcode string, log *zap.Logger) *GatewayClient {
	return &GatewayClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		shortcode: shortcode,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type stkPushRequest struct {
	Shortcode  string `json:"shortcode"`
	MSISDN     string `json:"msisdn"`
	AmountKES  int64  `json:"amount_kes"`
	AccountRef string `json:"account_ref"`
}

type STKPushResult struct {
	CheckoutID string `json:"checkout_id"`
	Status     string `json:"status"`
}

// InitiateSTKPush starts the collection prompt on the payer's handset. The
// money is not held until the gateway delivers the confirmation callback.
func (c *GatewayClient) InitiateSTKPush(ctx context.Context, msisdn string, amountKES int64, accountRef string) (*STKPushResult, error) {
	body, err := json.Marshal(stkPushRequest{
		Shortcode:  c.shortcode,
		MSISDN:     msisdn,
		AmountKES:  amountKES,
		AccountRef: accountRef,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/stkpush", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payment gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, string(raw))
	}

	var result STKPushResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

type b2cRequest struct {
	Shortcode string `json:"shortcode"`
	MSISDN    string `json:"msisdn"`
	AmountKES int64  `json:"amount_kes"`
	Remarks   string `json:"remarks"`
}

// InitiateB2C pays an agent's verified number. Payouts are best-effort and
// retried out of band; the earning row is the source of truth.
func (c *GatewayClient) InitiateB2C(ctx context.Context, msisdn string, amountKES int64, remarks string) error {
	body, err := json.Marshal(b2cRequest{
		Shortcode: c.shortcode,
		MSISDN:    msisdn,
		AmountKES: amountKES,
		Remarks:   remarks,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/b2c", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payment gateway returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
