// Package gateway implements the client for the downstream LLM gateway's
// admin API: account lookup and creation plus delegated key issuance.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"keygate/internal/config"
	"keygate/internal/health"
)

// TargetName identifies the gateway in health tracking.
const TargetName = "gateway"

// maxResponseBytes caps how much of an admin API response is read.
const maxResponseBytes = 1 << 20

// Account is the gateway's view of a durable user account.
type Account struct {
	ID        string
	Email     string
	Spend     float64
	MaxBudget float64
}

// Client talks to the gateway admin API. All calls authenticate with the
// configured admin key and run through the gateway circuit breaker.
type Client struct {
	runtime config.RuntimeConfig
	http    *http.Client
	tracker *health.Tracker
}

// NewClient creates a gateway admin API client. The tracker may be nil,
// which disables circuit breaking (used in tests).
func NewClient(runtime config.RuntimeConfig, tracker *health.Tracker) *Client {
	gw := runtime.Get().Gateway
	return &Client{
		runtime: runtime,
		tracker: tracker,
		http: &http.Client{
			Timeout: gw.GetTimeout(),
			Transport: &http.Transport{
				MaxIdleConns:        32,
				MaxIdleConnsPerHost: 32,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// HealthURL returns the gateway liveness endpoint for synthetic probes.
func (c *Client) HealthURL() string {
	base := strings.TrimSuffix(c.runtime.Get().Gateway.BaseURL, "/")
	if base == "" {
		return ""
	}
	return base + "/health/liveliness"
}

// GetAccount fetches an account by ID.
// Returns ErrAccountNotFound when the gateway does not know the account,
// either via 404 or via a 200 response with no user_info.
func (c *Client) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	path := "/user/info?user_id=" + url.QueryEscape(accountID)
	status, body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, ErrAccountNotFound
	}
	if status < 200 || status >= 300 {
		return nil, &APIError{StatusCode: status, Body: truncateBody(body)}
	}

	info := gjson.GetBytes(body, "user_info")
	if !info.Exists() || info.Type == gjson.Null {
		return nil, ErrAccountNotFound
	}

	acct := &Account{
		ID:        info.Get("user_id").String(),
		Email:     info.Get("user_email").String(),
		Spend:     info.Get("spend").Float(),
		MaxBudget: info.Get("max_budget").Float(),
	}
	if acct.ID == "" {
		acct.ID = accountID
	}
	return acct, nil
}

// CreateAccount registers a new account with the gateway.
// A conflict (the account already exists) surfaces as an APIError for which
// IsConflict reports true; callers are expected to re-fetch in that case.
func (c *Client) CreateAccount(ctx context.Context, accountID, email string) error {
	body, err := buildBody(map[string]any{
		"user_id":    accountID,
		"user_email": email,
	})
	if err != nil {
		return err
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/user/new", body)
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &APIError{StatusCode: status, Body: truncateBody(respBody)}
	}

	logger().Info().
		Str("account_id", accountID).
		Msg("gateway account created")
	return nil
}

// IssueKey requests a fresh delegated key scoped to the given account.
// Budget and model restrictions come from configuration. The returned key
// is never stored by keygate; callers hand it to exactly one request or
// session and forget it.
func (c *Client) IssueKey(ctx context.Context, accountID string) (string, error) {
	gw := c.runtime.Get().Gateway

	fields := map[string]any{
		"user_id":         accountID,
		"budget_duration": gw.GetKeyBudgetDuration(),
	}
	if budget, ok := gw.GetKeyMaxBudgetOption().Get(); ok {
		fields["max_budget"] = budget
	}
	if len(gw.KeyModels) > 0 {
		fields["models"] = gw.KeyModels
	}

	body, err := buildBody(fields)
	if err != nil {
		return "", err
	}

	status, respBody, err := c.do(ctx, http.MethodPost, "/key/generate", body)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &APIError{StatusCode: status, Body: truncateBody(respBody)}
	}

	key := gjson.GetBytes(respBody, "key").String()
	if key == "" {
		return "", ErrEmptyKey
	}
	return key, nil
}

// do executes one admin API call under the gateway circuit breaker.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var done func(error)
	if c.tracker != nil {
		var err error
		done, err = c.tracker.GetOrCreateCircuit(TargetName).Allow()
		if err != nil {
			return 0, nil, err
		}
	}
	report := func(err error) {
		if done != nil {
			done(err)
		}
	}

	gw := c.runtime.Get().Gateway

	var reader io.Reader = http.NoBody
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(gw.BaseURL, "/")+path, reader)
	if err != nil {
		report(nil)
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+gw.AdminKey)
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		report(err)
		return 0, nil, fmt.Errorf("gateway request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		report(err)
		return resp.StatusCode, nil, fmt.Errorf("read gateway response: %w", err)
	}

	if health.ShouldCountAsFailure(resp.StatusCode, nil) {
		report(fmt.Errorf("gateway status %d", resp.StatusCode))
	} else {
		report(nil)
	}

	zerolog.Ctx(ctx).Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("gateway admin call")

	return resp.StatusCode, data, nil
}

// buildBody assembles a JSON request body field by field.
func buildBody(fields map[string]any) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	for key, value := range fields {
		body, err = sjson.SetBytes(body, key, value)
		if err != nil {
			return nil, fmt.Errorf("build request body: %w", err)
		}
	}
	return body, nil
}
