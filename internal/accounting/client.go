package accounting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/flowerwork/iceberg/internal/common"
)

// SubmitResult carries the accounting API's response for audit logging.
type SubmitResult struct {
	Status int
	Body   string
}

// Client submits invoices to the external accounting system. Calls that hit
// an expired token refresh and retry within a fixed budget; nothing is
// retried indefinitely.
type Client struct {
	BaseURL    string
	HTTP       *http.Client
	Creds      CredentialProvider
	Retries    int
	RetryDelay time.Duration
	Logger     *slog.Logger
}

func NewClient(baseURL string, creds CredentialProvider, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL:    baseURL,
		HTTP:       httpClient,
		Creds:      creds,
		Retries:    3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
	}
}

// Submit posts an invoice payload for the given company. A 401 triggers a
// credential refresh and another attempt; after the retry budget is spent
// the call surfaces ErrSubmission. A submission failure never unwinds a
// reconciliation that already committed.
func (c *Client) Submit(ctx context.Context, companyID string, payload InvoicePayload) (SubmitResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("%w: encode payload: %v", common.ErrSubmission, err)
	}
	endpoint := fmt.Sprintf("%s/v3/company/%s/invoice", c.BaseURL, companyID)

	for attempt := 1; attempt <= c.Retries; attempt++ {
		creds, err := c.Creds.Credentials(ctx)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("%w: credentials: %v", common.ErrSubmission, err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", common.ErrSubmission, err)
		}
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTP.Do(req)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", common.ErrSubmission, err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			c.Logger.Info("accounting.submit.ok",
				"company_id", companyID,
				"doc_number", payload.DocNumber,
				"status", resp.StatusCode,
				"attempt", attempt,
			)
			return SubmitResult{Status: resp.StatusCode, Body: string(respBody)}, nil
		case resp.StatusCode == http.StatusUnauthorized:
			c.Logger.Warn("accounting.submit.unauthorized", "attempt", attempt)
			if _, err := c.Creds.Refresh(ctx); err != nil {
				c.Logger.Warn("accounting.refresh.failed", "attempt", attempt, "error", err)
			}
			if attempt < c.Retries {
				select {
				case <-time.After(c.RetryDelay):
				case <-ctx.Done():
					return SubmitResult{}, fmt.Errorf("%w: %v", common.ErrSubmission, ctx.Err())
				}
			}
		default:
			return SubmitResult{Status: resp.StatusCode, Body: string(respBody)},
				fmt.Errorf("%w: status %d", common.ErrSubmission, resp.StatusCode)
		}
	}
	return SubmitResult{}, fmt.Errorf("%w: retry budget exhausted", common.ErrSubmission)
}
