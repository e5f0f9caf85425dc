// Package backend is the HTTP client for the question-answering service.
// It speaks the JSON contract of the /api endpoints and nothing else.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// maxErrorBody caps how much of a failed response is kept as the error text.
	maxErrorBody = 64 * 1024

	userAgent = "ragchat/1.0"
)

// API paths.
const (
	PathProviders      = "/api/providers"
	PathProviderKey    = "/api/settings/provider-key"
	PathModels         = "/api/models"
	PathSetModel       = "/api/settings/model"
	PathInitEmbeddings = "/api/init_embeddings"
	PathAsk            = "/api/ask"
)

// ErrEmptyBaseURL is returned by NewClient when no backend address is given.
var ErrEmptyBaseURL = errors.New("backend base URL is empty")

// StatusError is returned when the backend answers with a non-2xx status.
// The response body is the error description.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return e.Body
	}
	return fmt.Sprintf("backend returned status %d", e.StatusCode)
}

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means requests
// only end when the context does.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListProviders fetches the providers known to the backend.
func (c *Client) ListProviders(ctx context.Context) (*ProvidersResponse, error) {
	var out ProvidersResponse
	if err := c.do(ctx, http.MethodGet, PathProviders, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveProviderKey stores an API key for a provider on the backend.
func (c *Client) SaveProviderKey(ctx context.Context, provider, apiKey string) error {
	return c.do(ctx, http.MethodPost, PathProviderKey, providerKeyRequest{Provider: provider, APIKey: apiKey}, nil)
}

// ListModels fetches the models of one provider.
func (c *Client) ListModels(ctx context.Context, provider string) (*ModelsResponse, error) {
	path := PathModels + "?provider=" + url.QueryEscape(provider)
	var out ModelsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetModel tells the backend which model subsequent asks should use.
func (c *Client) SetModel(ctx context.Context, model string) error {
	return c.do(ctx, http.MethodPost, PathSetModel, setModelRequest{Model: model}, nil)
}

// InitEmbeddings asks the backend to (re)build its knowledge base and
// returns the number of chunks indexed.
func (c *Client) InitEmbeddings(ctx context.Context) (int, error) {
	var out InitEmbeddingsResponse
	if err := c.do(ctx, http.MethodPost, PathInitEmbeddings, nil, &out); err != nil {
		return 0, err
	}
	return out.ChunksCount, nil
}

// Ask sends a question and returns the answer with the chunks it used.
func (c *Client) Ask(ctx context.Context, question string) (*AskResponse, error) {
	var out AskResponse
	if err := c.do(ctx, http.MethodPost, PathAsk, askRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
