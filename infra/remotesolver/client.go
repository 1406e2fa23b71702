// Package remotesolver delegates sizing to an optimisation service reached
// over HTTP. The service receives the engine input as JSON and answers with
// the engine output.
package remotesolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/kilianp07/recsizing/core/solver"
)

// Config configures the remote engine. Client credentials are optional;
// when TokenURL is set every call carries a bearer token.
type Config struct {
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	ClientID       string `json:"client_id"`
	ClientSecret   string `json:"client_secret"`
	TokenURL       string `json:"token_url"`
}

// Client implements solver.Engine.
type Client struct {
	url    string
	client *http.Client
}

// New returns a remote engine.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("remote solver url is required")
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 300
	}
	base := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	httpClient := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = base.Timeout
	}
	return &Client{url: cfg.URL, client: httpClient}, nil
}

func (c *Client) Solve(ctx context.Context, in solver.Input) (solver.Output, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return solver.Output{}, fmt.Errorf("encode engine input: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return solver.Output{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return solver.Output{}, fmt.Errorf("call remote solver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return solver.Output{}, fmt.Errorf("remote solver returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	var out solver.Output
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return solver.Output{}, fmt.Errorf("decode engine output: %w", err)
	}
	return out, nil
}
