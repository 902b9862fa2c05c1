package orderbook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sugawarayuuta/sonnet"
)

const defaultTimeout = 30 * time.Second

// Client talks to the order-book REST API. It never retries.
type Client struct {
	baseURL     string
	explorerURL string
	httpClient  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithExplorer sets the base URL used to build SubmissionResult.ExplorerURL
func WithExplorer(explorerURL string) Option {
	return func(c *Client) { c.explorerURL = strings.TrimRight(explorerURL, "/") }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitOrder posts a signed order and returns its UID
func (c *Client) SubmitOrder(ctx context.Context, oc OrderCreation) (SubmissionResult, error) {
	var uid string
	if err := c.do(ctx, http.MethodPost, "/api/v1/orders", oc, &uid); err != nil {
		return SubmissionResult{}, err
	}
	if uid == "" {
		return SubmissionResult{}, &SubmissionError{Status: http.StatusCreated, ErrorType: ErrorTypeInternal, Description: "empty order uid"}
	}
	return SubmissionResult{UID: uid, ExplorerURL: c.ExplorerURL(uid)}, nil
}

// UploadAppData registers the full document for hash so the order book can
// resolve it later
func (c *Client) UploadAppData(ctx context.Context, hash common.Hash, fullAppData string) error {
	return c.do(ctx, http.MethodPut, "/api/v1/app_data/"+hash.Hex(), AppDataUpload{FullAppData: fullAppData}, nil)
}

// GetAppData fetches the document registered for hash
func (c *Client) GetAppData(ctx context.Context, hash common.Hash) (string, error) {
	var view AppDataView
	if err := c.do(ctx, http.MethodGet, "/api/v1/app_data/"+hash.Hex(), nil, &view); err != nil {
		return "", err
	}
	return view.FullAppData, nil
}

func (c *Client) GetOrder(ctx context.Context, uid string) (*OrderView, error) {
	var view OrderView
	if err := c.do(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(uid), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// ExplorerURL links to the order on the block explorer ("" when unset)
func (c *Client) ExplorerURL(uid string) string {
	if c.explorerURL == "" {
		return ""
	}
	return c.explorerURL + "/orders/" + uid
}

func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := sonnet.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &SubmissionError{ErrorType: ErrorTypeTransport, Transient: true, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &SubmissionError{Status: resp.StatusCode, ErrorType: ErrorTypeTransport, Transient: true, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := sonnet.Unmarshal(respBody, result); err != nil {
			return &SubmissionError{
				Status:      resp.StatusCode,
				ErrorType:   ErrorTypeInternal,
				Description: "undecodable response body",
				Err:         fmt.Errorf("failed to decode response: %w", err),
			}
		}
	}
	return nil
}

func decodeError(status int, body []byte) *SubmissionError {
	se := &SubmissionError{Status: status, Transient: isTransient(status)}

	var eb ErrorBody
	if err := sonnet.Unmarshal(body, &eb); err == nil && eb.ErrorType != "" {
		se.ErrorType = eb.ErrorType
		se.Description = eb.Description
		return se
	}

	se.ErrorType = http.StatusText(status)
	se.Description = strings.TrimSpace(string(body))
	return se
}
