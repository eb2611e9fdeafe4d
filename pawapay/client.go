// Package pawapay is a client for the pawaPay deposits API, the mobile
// money gateway behind the registration payment flow.
package pawapay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

type DepositStatus string

const (
	DEPOSIT_ACCEPTED          DepositStatus = "ACCEPTED"
	DEPOSIT_SUBMITTED         DepositStatus = "SUBMITTED"
	DEPOSIT_ENQUEUED          DepositStatus = "ENQUEUED"
	DEPOSIT_COMPLETED         DepositStatus = "COMPLETED"
	DEPOSIT_FAILED            DepositStatus = "FAILED"
	DEPOSIT_REJECTED          DepositStatus = "REJECTED"
	DEPOSIT_DUPLICATE_IGNORED DepositStatus = "DUPLICATE_IGNORED"
)

// Terminal reports whether the provider will never move the deposit out
// of this status.
func (s DepositStatus) Terminal() bool {
	switch s {
	case DEPOSIT_COMPLETED, DEPOSIT_FAILED, DEPOSIT_REJECTED, DEPOSIT_DUPLICATE_IGNORED:
		return true
	default:
		return false
	}
}

const PayerTypeMSISDN = "MSISDN"

type PayerAddress struct {
	Value string `json:"value"`
}

type Payer struct {
	Type    string       `json:"type"`
	Address PayerAddress `json:"address"`
}

type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type CorrespondentIDs struct {
	TransactionID string `json:"transactionId,omitempty"`
}

type DepositRequest struct {
	Amount               string `json:"amount"`
	Currency             string `json:"currency"`
	Correspondent        string `json:"correspondent"`
	Payer                Payer  `json:"payer"`
	CustomerTimestamp    string `json:"customerTimestamp"`
	StatementDescription string `json:"statementDescription"`
}

type DepositResponse struct {
	DepositID            string           `json:"depositId"`
	Status               DepositStatus    `json:"status"`
	RequestedAmount      *Amount          `json:"requestedAmount,omitempty"`
	DepositedAmount      *Amount          `json:"depositedAmount,omitempty"`
	Correspondent        string           `json:"correspondent,omitempty"`
	Payer                *Payer           `json:"payer,omitempty"`
	CustomerTimestamp    string           `json:"customerTimestamp,omitempty"`
	StatementDescription string           `json:"statementDescription,omitempty"`
	Created              string           `json:"created,omitempty"`
	CorrespondentIDs     CorrespondentIDs `json:"correspondentIds,omitempty"`
}

// errorBody is the provider's error response shape. Only the message is
// surfaced to callers.
type errorBody struct {
	Message string `json:"message"`
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient builds a deposits API client. httpClient may be nil, in
// which case http.DefaultClient is used with whatever transport
// timeouts it carries.
func NewClient(baseURL string, token string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: httpClient,
		logger:     logger,
	}
}

// InitiateDeposit asks the provider to charge the payer. The returned
// deposit ID is the handle for status polling.
func (c *Client) InitiateDeposit(ctx context.Context, depositReq DepositRequest) (DepositResponse, error) {
	body, err := json.Marshal(depositReq)
	if err != nil {
		return DepositResponse{}, NewRequestFailedError("Failed to encode deposit request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/deposits", bytes.NewReader(body))
	if err != nil {
		return DepositResponse{}, NewRequestFailedError("Failed to build deposit request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DepositResponse{}, NewRequestFailedError("Deposit request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DepositResponse{}, c.providerError(resp, "Payment initiation failed")
	}

	var depositResp DepositResponse
	if err := json.NewDecoder(resp.Body).Decode(&depositResp); err != nil {
		return DepositResponse{}, NewMalformedResponseError("Failed to decode deposit response", err)
	}

	c.logger.Info("deposit initiated",
		slog.String("depositId", depositResp.DepositID),
		slog.String("status", string(depositResp.Status)),
		slog.String("correspondent", depositReq.Correspondent),
	)

	return depositResp, nil
}

// GetDeposit fetches the current state of a deposit for status polling.
func (c *Client) GetDeposit(ctx context.Context, depositID string) (DepositResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v2/deposits/%s", c.baseURL, depositID), nil)
	if err != nil {
		return DepositResponse{}, NewRequestFailedError("Failed to build deposit status request", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DepositResponse{}, NewRequestFailedError("Deposit status request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DepositResponse{}, c.providerError(resp, "Failed to check payment status")
	}

	var depositResp DepositResponse
	if err := json.NewDecoder(resp.Body).Decode(&depositResp); err != nil {
		return DepositResponse{}, NewMalformedResponseError("Failed to decode deposit status response", err)
	}

	return depositResp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// providerError extracts the provider's message from a non-2xx response
// body, falling back to a fixed message when the body has none.
func (c *Client) providerError(resp *http.Response, fallback string) *Error {
	message := fallback

	body, err := io.ReadAll(io.LimitReader(resp.Body, 65536))
	if err == nil {
		var eb errorBody
		if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
			message = eb.Message
		}
	}

	c.logger.Warn("provider rejected request",
		slog.Int("status", resp.StatusCode),
		slog.String("message", message),
	)

	return NewProviderRejectedError(message, resp.StatusCode)
}
