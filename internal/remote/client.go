// Package remote submits queued actions to the parking backend over HTTP.
//
// The coordinator never sees this package directly; it is wired in through
// the syncer.Submitter port. Every submission carries the record id as an
// Idempotency-Key header, so a backend that deduplicates on it gets
// effective exactly-once replay. Without backend support the behavior
// degrades to at-least-once: a success the client never observed is
// resubmitted on the next run.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jbetancur12/parking-app-sub001/internal/errors"
	"github.com/jbetancur12/parking-app-sub001/internal/models"
	"github.com/jbetancur12/parking-app-sub001/internal/syncer"
)

const (
	entryPath  = "/api/v1/vehicles/entry"
	exitPath   = "/api/v1/vehicles/exit"
	healthPath = "/api/v1/health"
)

// Config holds remote connection configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // per-request deadline (default: 30s)
}

// Client submits actions to the parking backend.
type Client struct {
	config     *Config
	httpClient *http.Client
}

// errorResponse is the backend's error envelope.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient creates a new Client.
func NewClient(config *Config) *Client {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}

// Register binds this client's submitters for the kinds it supports.
func (c *Client) Register(registry *syncer.Registry) {
	registry.Register(models.KindEntry, c.submitter(entryPath))
	registry.Register(models.KindExit, c.submitter(exitPath))
}

// submitter returns a Submitter posting payloads to the given path.
func (c *Client) submitter(path string) syncer.Submitter {
	return syncer.SubmitterFunc(func(ctx context.Context, rec *models.ActionRecord) error {
		return c.post(ctx, path, rec)
	})
}

// post sends one record's payload. The payload is passed through unmodified;
// tenant and location routing identifiers travel inside it.
func (c *Client) post(ctx context.Context, path string, rec *models.ActionRecord) error {
	url := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(rec.Payload))
	if err != nil {
		return errors.Wrap(errors.ErrInternal, "failed to build request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", rec.ID)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrSubmitUnavailable, "remote unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	return errors.New(errors.ErrSubmitRejected, readErrorMessage(resp))
}

// readErrorMessage extracts the server-provided failure reason so the
// operator can triage a stuck item.
func readErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("remote returned status %d", resp.StatusCode)
	}

	var envelope errorResponse
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error != "" {
			return envelope.Error
		}
	}

	return fmt.Sprintf("remote returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// Ping reports whether the backend is reachable. Used as the connectivity
// monitor's probe.
func (c *Client) Ping(ctx context.Context) bool {
	url := strings.TrimRight(c.config.BaseURL, "/") + healthPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
