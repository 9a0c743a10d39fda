// Package loginsdk provides the wire types for the login service's HTTP API
// and a small client for driving the device-trust login flow from Go.
//
// A login either completes immediately (trusted device) or parks on a
// challenge ID until the emailed code is verified:
//
//	client := loginsdk.NewClient("https://login.example.com")
//	resp, err := client.Login(ctx, loginsdk.LoginRequest{ ... })
//	if err != nil { ... }
//	if resp.Status == loginsdk.StatusOTPRequired {
//		resp, err = client.VerifyOTP(ctx, resp.ChallengeID, codeFromEmail)
//	}
//	token := resp.Session.Token
package loginsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to the login service. Safe for concurrent use.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a login service client.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login starts a login attempt for the user portal.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	return c.postLogin(ctx, "/v1/login", req)
}

// AdminLogin starts a login attempt for the admin portal.
func (c *Client) AdminLogin(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	return c.postLogin(ctx, "/v1/admin/login", req)
}

func (c *Client) postLogin(ctx context.Context, path string, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyOTP submits the emailed code for a pending challenge.
func (c *Client) VerifyOTP(ctx context.Context, challengeID, code string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.postJSON(ctx, "/v1/login/otp", OTPVerifyRequest{
		ChallengeID: challengeID,
		Code:        code,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// ResendOTP requests a fresh code for a pending challenge.
func (c *Client) ResendOTP(ctx context.Context, challengeID string) error {
	return c.postJSON(ctx, "/v1/login/otp/resend", OTPResendRequest{ChallengeID: challengeID}, nil)
}

// CurrentSession resolves a session token to its identity.
func (c *Client) CurrentSession(ctx context.Context, token string) (*SessionInfoResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/session", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var resp SessionInfoResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout ends the session behind a token. Idempotent.
func (c *Client) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/logout", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return c.do(req, nil)
}

// GetLiveness checks the service's liveness probe.
func (c *Client) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/livez", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	var resp HealthResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

// do executes the request and decodes either the success body into out or an
// APIError from the failure body.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}

	// Ban rejections carry extra context; try that shape first.
	var banned BannedErrorResponse
	if json.Unmarshal(body, &banned) == nil && banned.Code == ErrorCodeAccountBanned {
		return &BannedError{
			APIError: APIError{
				StatusCode:  resp.StatusCode,
				Code:        banned.Code,
				Description: banned.Description,
			},
			Ban: banned.Ban,
		}
	}

	var apiErr APIError
	if json.Unmarshal(body, &apiErr) != nil || apiErr.Code == "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        ErrorCodeServerError,
			Description: fmt.Sprintf("unexpected response (status %d)", resp.StatusCode),
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return &apiErr
}

// BannedError is the typed error for account_banned rejections.
type BannedError struct {
	APIError
	Ban *BanInfo
}
