package llm

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

const (
	openAIDefaultBaseURL = "https://api.openai.com"
	openAIResponsesPath  = "/v1/responses"
	defaultTimeout       = 120 * time.Second
)

// OpenAIClient talks to the OpenAI Responses API (or any endpoint that
// speaks the same wire format). The API key is per-call state because
// every organization brings its own credential.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// OpenAIOption configures an OpenAIClient.
type OpenAIOption func(*OpenAIClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(o *OpenAIClient) { o.client = c }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) OpenAIOption {
	return func(o *OpenAIClient) { o.client.Timeout = d }
}

// NewOpenAIClient creates a Responses API client for the given endpoint
// and API key.
func NewOpenAIClient(baseURL, apiKey string, opts ...OpenAIOption) *OpenAIClient {
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	c := &OpenAIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type apiErrorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// CreateResponse sends one request and decodes the response. Failures
// are reported as *RequestError; no retries are attempted.
func (c *OpenAIClient) CreateResponse(ctx context.Context, req *Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("marshal request: %v", err), Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+openAIResponsesPath, bytes.NewReader(body))
	if err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("create request: %v", err), Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &RequestError{Message: err.Error(), Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RequestError{StatusCode: httpResp.StatusCode, Message: fmt.Sprintf("read response: %v", err), Err: err}
	}

	if httpResp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(respBody))
		var apiErr apiErrorBody
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return nil, &RequestError{StatusCode: httpResp.StatusCode, Message: msg}
	}

	var resp Response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, &RequestError{Message: fmt.Sprintf("unmarshal response: %v", err), Err: err}
	}
	return &resp, nil
}
