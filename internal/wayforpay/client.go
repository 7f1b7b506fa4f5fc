package wayforpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrGateway = errors.New("gateway error")

// reasonCodeOK is the regularApi success code ("Ok" responses carry 4100).
const reasonCodeOK = 4100

const (
	requestTypeStatus = "STATUS"
	requestTypeRemove = "REMOVE"

	// RegularStatusActive is the gateway's own vocabulary for a live
	// recurring subscription; anything else means the renewal chain is dead.
	RegularStatusActive = "Active"
)

type ClientConfig struct {
	APIURL           string
	MerchantAccount  string
	MerchantPassword string
	SecretKey        string
	Timeout          time.Duration
}

// Client talks to the gateway's server-to-server regular-payments API:
// subscription status queries and recurring-token removal.
type Client struct {
	httpClient       *http.Client
	apiURL           string
	merchantAccount  string
	merchantPassword string
	codec            Codec
}

func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		apiURL:           cfg.APIURL,
		merchantAccount:  cfg.MerchantAccount,
		merchantPassword: cfg.MerchantPassword,
		codec:            NewCodec(cfg.SecretKey, MissingOmit),
	}
}

type StatusResult struct {
	Status     string
	ReasonCode int
	Reason     string
}

type regularAPIResponse struct {
	Status     string      `json:"status"`
	ReasonCode json.Number `json:"reasonCode"`
	Reason     string      `json:"reason"`
}

// CheckStatus queries the authoritative subscription state by order
// reference. The response is only trusted when the gateway's reason code
// confirms a successful lookup.
func (c *Client) CheckStatus(ctx context.Context, orderReference string) (StatusResult, error) {
	if strings.TrimSpace(orderReference) == "" {
		return StatusResult{}, fmt.Errorf("order reference is required")
	}

	payload := map[string]any{
		"requestType":      requestTypeStatus,
		"merchantAccount":  c.merchantAccount,
		"merchantPassword": c.merchantPassword,
		"orderReference":   orderReference,
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return StatusResult{}, err
	}

	code, _ := resp.ReasonCode.Int64()
	if code != reasonCodeOK {
		return StatusResult{}, fmt.Errorf("%w: status lookup refused, reason %q (code %d)", ErrGateway, resp.Reason, code)
	}

	return StatusResult{
		Status:     resp.Status,
		ReasonCode: int(code),
		Reason:     resp.Reason,
	}, nil
}

// RemoveRecurring asks the gateway to drop a stored recurring-payment token.
// Local cancellation state must only change after this succeeds.
func (c *Client) RemoveRecurring(ctx context.Context, orderReference, recToken string) error {
	if strings.TrimSpace(recToken) == "" {
		return fmt.Errorf("rec token is required")
	}

	payload := map[string]any{
		"requestType":       requestTypeRemove,
		"merchantAccount":   c.merchantAccount,
		"merchantPassword":  c.merchantPassword,
		"orderReference":    orderReference,
		"recToken":          recToken,
		"merchantSignature": c.codec.RemoveSignature(c.merchantAccount, orderReference, recToken),
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}

	code, _ := resp.ReasonCode.Int64()
	if code != reasonCodeOK {
		return fmt.Errorf("%w: token removal refused, reason %q (code %d)", ErrGateway, resp.Reason, code)
	}

	return nil
}

func (c *Client) post(ctx context.Context, payload map[string]any) (regularAPIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return regularAPIResponse{}, fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return regularAPIResponse{}, fmt.Errorf("create gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return regularAPIResponse{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return regularAPIResponse{}, fmt.Errorf("%w: unexpected gateway status %d", ErrGateway, resp.StatusCode)
	}

	var decoded regularAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return regularAPIResponse{}, fmt.Errorf("%w: decode gateway response: %v", ErrGateway, err)
	}

	return decoded, nil
}
