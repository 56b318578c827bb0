// Package banno is the HTTP client for the digital-banking consumer API.
// The transport never raises on a non-success status; every call checks
// the response explicitly and converts failures into BACKEND_UNAVAILABLE
// errors carrying status, headers and body for diagnostics.
package banno

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/garden-fi/assistant-fulfillment/internal/domain/account"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/enrichment"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/errors"
	"github.com/garden-fi/assistant-fulfillment/internal/domain/session"
)

const defaultTimeout = 20 * time.Second

// Client calls the consumer API of the banking backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        *slog.Logger
}

// NewClient creates a client for the consumer API hosted at the given
// hostname (e.g. "digital.garden-fi.com").
func NewClient(hostname string, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    fmt.Sprintf("https://%s/a/consumer/api", hostname),
		log:        log,
	}
}

// NewClientWithBaseURL creates a client against an explicit base URL.
// Used by tests to point at a local server.
func NewClientWithBaseURL(baseURL string, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    baseURL,
		log:        log,
	}
}

// FetchReceipt acknowledges a triggered account refresh.
type FetchReceipt struct {
	TaskID string `json:"taskId"`
}

// Identity resolves the user behind a bearer token.
func (c *Client) Identity(ctx context.Context, bearerToken string) (session.UserInfo, error) {
	var info session.UserInfo
	err := c.do(ctx, "resolving user identity", http.MethodGet, c.baseURL+"/v0/oidc/me", bearerToken, &info)
	return info, err
}

// TriggerFetch asks the backend to refresh the user's account data and
// returns the id of the background task doing the work.
func (c *Client) TriggerFetch(ctx context.Context, bearerToken, sub string) (string, error) {
	var receipt FetchReceipt
	u := fmt.Sprintf("%s/v0/users/%s/fetch", c.baseURL, url.PathEscape(sub))
	if err := c.do(ctx, "fetch response", http.MethodPut, u, bearerToken, &receipt); err != nil {
		return "", err
	}
	return receipt.TaskID, nil
}

// TaskStatus polls one background task for events recorded after
// sinceVersion. Note the task endpoint is not under /v0.
func (c *Client) TaskStatus(ctx context.Context, bearerToken, sub, taskID string, sinceVersion int64) (enrichment.JobStatus, error) {
	var status enrichment.JobStatus
	u := fmt.Sprintf("%s/users/%s/tasks/%s?sinceVersion=%s",
		c.baseURL, url.PathEscape(sub), url.PathEscape(taskID), strconv.FormatInt(sinceVersion, 10))
	err := c.do(ctx, "task poll", http.MethodGet, u, bearerToken, &status)
	return status, err
}

// ListAccounts retrieves the user's raw account records.
func (c *Client) ListAccounts(ctx context.Context, bearerToken, sub string) ([]account.RawAccount, error) {
	var listing account.ListAccountsResponse
	u := fmt.Sprintf("%s/v0/users/%s/accounts", c.baseURL, url.PathEscape(sub))
	if err := c.do(ctx, "getting user accounts", http.MethodGet, u, bearerToken, &listing); err != nil {
		return nil, err
	}
	return listing.Accounts, nil
}

// do issues one authorized request and decodes the JSON body into out.
// Non-2xx responses become BACKEND_UNAVAILABLE errors with the response
// captured for diagnostics.
func (c *Client) do(ctx context.Context, description, method, rawURL, bearerToken string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return errors.NewInternalError("building backend request", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NewBackendUnavailableError(description, 0, nil, "").WithDetail("cause", err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		headers := flattenHeaders(resp.Header)
		c.log.Error(description,
			"status", resp.StatusCode,
			"headers", headers,
			"body", string(body))
		return errors.NewBackendUnavailableError(description, resp.StatusCode, headers, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewBackendUnavailableError(description, resp.StatusCode, nil, "").
			WithDetail("cause", fmt.Sprintf("decoding response body: %v", err))
	}
	return nil
}

// flattenHeaders collapses single-valued headers to their value so logs
// stay readable; multi-valued headers keep the slice.
func flattenHeaders(header http.Header) map[string]interface{} {
	flattened := make(map[string]interface{}, len(header))
	for name, values := range header {
		if len(values) == 1 {
			flattened[name] = values[0]
		} else {
			flattened[name] = values
		}
	}
	return flattened
}
