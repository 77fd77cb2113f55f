package ftrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tierwatch/internal/config"
	"tierwatch/internal/logging"
	"tierwatch/internal/services"
)

const userAgent = "tierwatch/0.1"

// HTTPDoer describes the HTTP client used by the ftrack client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a Client.
type Options struct {
	Server  string
	APIUser string
	APIKey  string
	Timeout time.Duration
	HTTP    HTTPDoer
	Logger  *slog.Logger
}

// Client issues batched operations against the ftrack API.
type Client struct {
	endpoint string
	user     string
	apiKey   string
	timeout  time.Duration
	http     HTTPDoer
	logger   *slog.Logger
}

// New constructs a client. Server, APIUser, and APIKey are required.
func New(opts Options) (*Client, error) {
	server := strings.TrimRight(strings.TrimSpace(opts.Server), "/")
	if server == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ftrack", "new client", "server is empty", nil)
	}
	if strings.TrimSpace(opts.APIUser) == "" || strings.TrimSpace(opts.APIKey) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "ftrack", "new client", "api user and key are required", nil)
	}
	client := opts.HTTP
	if client == nil {
		client = &http.Client{}
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: server + "/api",
		user:     strings.TrimSpace(opts.APIUser),
		apiKey:   strings.TrimSpace(opts.APIKey),
		timeout:  timeout,
		http:     client,
		logger:   logging.NewComponentLogger(opts.Logger, "ftrack"),
	}, nil
}

// NewFromConfig constructs a client from the [ftrack] config section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "ftrack", "new client", "config is nil", nil)
	}
	return New(Options{
		Server:  cfg.Ftrack.Server,
		APIUser: cfg.Ftrack.APIUser,
		APIKey:  cfg.Ftrack.APIKey,
		Timeout: cfg.FtrackTimeout(),
		Logger:  logger,
	})
}

// operation is one entry of a batched API call.
type operation struct {
	Action     string `json:"action"`
	Expression string `json:"expression,omitempty"`
}

func queryOp(expression string) operation {
	return operation{Action: "query", Expression: expression}
}

type queryResult struct {
	Action string            `json:"action"`
	Data   []json.RawMessage `json:"data"`
}

type apiException struct {
	Exception string `json:"exception"`
	Content   string `json:"content"`
	ErrorCode string `json:"error_code"`
}

// call posts ops in one request and returns the raw per-operation results in
// the same order.
func (c *Client) call(ctx context.Context, ops []operation) ([]json.RawMessage, error) {
	body, err := json.Marshal(ops)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ftrack", "encode request", "", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "ftrack", "build request", "", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("ftrack-user", c.user)
	req.Header.Set("ftrack-api-key", c.apiKey)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "post", c.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "read response", "", err)
	}
	c.logger.Debug("ftrack call",
		logging.Int("operations", len(ops)),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var exc apiException
		if err := json.Unmarshal(trimmed, &exc); err == nil && exc.Exception != "" {
			return nil, services.Wrap(services.ErrExternalService, "ftrack", exc.Exception, exc.Content, nil)
		}
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet := string(trimmed)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "post",
			fmt.Sprintf("status %d: %s", resp.StatusCode, snippet), nil)
	}

	var results []json.RawMessage
	if err := json.Unmarshal(trimmed, &results); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode response", "", err)
	}
	if len(results) != len(ops) {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode response",
			fmt.Sprintf("got %d results for %d operations", len(results), len(ops)), nil)
	}
	return results, nil
}

// Query runs a single query expression and returns the data records.
func (c *Client) Query(ctx context.Context, expression string) ([]json.RawMessage, error) {
	results, err := c.queries(ctx, []string{expression})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

func (c *Client) queries(ctx context.Context, expressions []string) ([][]json.RawMessage, error) {
	ops := make([]operation, 0, len(expressions))
	for _, expr := range expressions {
		ops = append(ops, queryOp(expr))
	}
	raw, err := c.call(ctx, ops)
	if err != nil {
		return nil, err
	}
	out := make([][]json.RawMessage, 0, len(raw))
	for i, r := range raw {
		var qr queryResult
		if err := json.Unmarshal(r, &qr); err != nil {
			return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode query result", expressions[i], err)
		}
		out = append(out, qr.Data)
	}
	return out, nil
}

// ServerInfo returns the server information record; used as a connectivity
// and credentials probe.
func (c *Client) ServerInfo(ctx context.Context) (map[string]any, error) {
	raw, err := c.call(ctx, []operation{{Action: "query_server_information"}})
	if err != nil {
		return nil, err
	}
	var info map[string]any
	if err := json.Unmarshal(raw[0], &info); err != nil {
		return nil, services.Wrap(services.ErrExternalService, "ftrack", "decode server information", "", err)
	}
	return info, nil
}
