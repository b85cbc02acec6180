// Package provisioner is the HTTP client of the remote provisioning authority.
package provisioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dtroode/vpnbot/internal/logger"
	"github.com/dtroode/vpnbot/internal/model"
)

const (
	defaultTimeout          = 20 * time.Second
	defaultMaxResponseBytes = 1 << 20
)

// Fixed diagnostic messages recorded on failed outcomes.
const (
	MsgNotConfigured       = "Provisioning service is not configured."
	MsgInvalidJSON         = "Provisioning service returned invalid JSON."
	MsgUnexpectedStructure = "Unexpected provisioning response structure."
	MsgFailed              = "Provisioning failed."
)

// TokenIssuer mints a bearer token for one provisioning request.
type TokenIssuer interface {
	Issue(telegramID int64, force bool) (string, error)
}

// Options configure a Client.
type Options struct {
	URL              string
	Token            string
	Issuer           TokenIssuer
	HTTPClient       *http.Client
	Timeout          time.Duration
	MaxResponseBytes int64
	Logger           *logger.Logger
}

var _ model.Provisioner = (*Client)(nil)

// Client calls the provisioning authority. Every failure is reported on the
// returned Outcome.
type Client struct {
	url              string
	token            string
	issuer           TokenIssuer
	httpClient       *http.Client
	maxResponseBytes int64
	logger           *logger.Logger
}

// New creates a Client. Issuer, when set, takes precedence over Token.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxBytes := opts.MaxResponseBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxResponseBytes
	}
	return &Client{
		url:              strings.TrimSpace(opts.URL),
		token:            strings.TrimSpace(opts.Token),
		issuer:           opts.Issuer,
		httpClient:       httpClient,
		maxResponseBytes: maxBytes,
		logger:           opts.Logger,
	}
}

// Configured reports whether an authority endpoint is set.
func (c *Client) Configured() bool {
	return c.url != ""
}

type profilePayload struct {
	UUID      string  `json:"uuid"`
	Label     string  `json:"label"`
	Server    string  `json:"server"`
	Port      int     `json:"port"`
	Transport string  `json:"transport"`
	Security  string  `json:"security"`
	Flow      *string `json:"flow"`
	SNI       *string `json:"sni"`
	Path      *string `json:"path"`
}

type provisionRequest struct {
	TelegramID int64          `json:"telegram_id"`
	Username   *string        `json:"username"`
	FullName   *string        `json:"full_name"`
	Force      bool           `json:"force"`
	Profile    profilePayload `json:"profile"`
}

// Provision sends profile to the authority and normalizes its answer.
func (c *Client) Provision(ctx context.Context, user model.User, profile model.Profile, force bool) model.Outcome {
	if !c.Configured() {
		c.logger.Warn("Provisioner: endpoint is not configured")
		return failure(model.FailureConfig, MsgNotConfigured)
	}

	body, err := json.Marshal(provisionRequest{
		TelegramID: user.TelegramID,
		Username:   optional(user.Username),
		FullName:   optional(user.FullName),
		Force:      force,
		Profile: profilePayload{
			UUID:      profile.UUID,
			Label:     profile.Label,
			Server:    profile.Server,
			Port:      profile.Port,
			Transport: string(profile.Transport),
			Security:  string(profile.Security),
			Flow:      optional(profile.Flow),
			SNI:       optional(profile.SNI),
			Path:      optional(profile.Path),
		},
	})
	if err != nil {
		return failure(model.FailureProtocol, fmt.Sprintf("failed to encode provisioning request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return failure(model.FailureConfig, fmt.Sprintf("failed to build provisioning request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	bearer, err := c.bearer(user, force)
	if err != nil {
		c.logger.Error("Provisioner: failed to issue token",
			"telegram_id", user.TelegramID,
			"error", err.Error())
		return failure(model.FailureConfig, err.Error())
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Provisioner: request error",
			"telegram_id", user.TelegramID,
			"error", err.Error())
		return failure(model.FailureTransport, transportMessage(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		c.logger.Warn("Provisioner: failed to read response",
			"telegram_id", user.TelegramID,
			"error", err.Error())
		return failure(model.FailureTransport, transportMessage(err))
	}
	if int64(len(raw)) > c.maxResponseBytes {
		raw = raw[:c.maxResponseBytes]
		if resp.StatusCode < http.StatusBadRequest {
			return failure(model.FailureProtocol,
				fmt.Sprintf("Provisioning response exceeds %d bytes.", c.maxResponseBytes))
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		text := strings.TrimSpace(string(raw))
		c.logger.Warn("Provisioner: request failed",
			"telegram_id", user.TelegramID,
			"status", resp.StatusCode,
			"body", text)
		return failure(model.FailureProtocol, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, text))
	}

	outcome, err := parseResponse(raw)
	if err != nil {
		c.logger.Warn("Provisioner: invalid JSON response",
			"telegram_id", user.TelegramID,
			"body", string(raw))
		return failure(model.FailureProtocol, MsgInvalidJSON)
	}

	c.logger.Debug("Provisioner: response parsed",
		"telegram_id", user.TelegramID,
		"remote_id", outcome.RemoteID,
		"overrides", len(outcome.Overrides),
		"error", outcome.Error)

	return outcome
}

func (c *Client) bearer(user model.User, force bool) (string, error) {
	if c.issuer != nil {
		return c.issuer.Issue(user.TelegramID, force)
	}
	return c.token, nil
}

func failure(kind model.FailureKind, msg string) model.Outcome {
	return model.Outcome{Error: msg, Kind: kind}
}

func transportMessage(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Provisioning request timed out: " + err.Error()
	}
	return "Provisioning request failed: " + err.Error()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
