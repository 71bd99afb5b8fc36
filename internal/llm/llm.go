// Package llm is a client for the OpenAI Responses API, the wire format
// the command orchestrator speaks. One CreateResponse call is one round
// of the agent loop.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client issues a single request to the Responses API.
type Client interface {
	CreateResponse(ctx context.Context, req *Request) (*Response, error)
}

// FunctionTool is one entry of the tools array offered to the model.
// Parameters must be a strict object schema; see orchestrator.NormalizeParameters.
type FunctionTool struct {
	Type        string         `json:"type"` // always "function"
	Name        string         `json:"name"`
	Parameters  map[string]any `json:"parameters"`
	Description *string        `json:"description"`
	Strict      bool           `json:"strict"`
}

// FunctionCallOutput feeds one tool result back to the model.
type FunctionCallOutput struct {
	Type   string `json:"type"` // always "function_call_output"
	CallID string `json:"call_id"`
	Output string `json:"output"`
}

// Request is the Responses API request body. Input is either the raw
// command string (first round) or a []FunctionCallOutput (follow-up).
type Request struct {
	Model              string         `json:"model"`
	Input              any            `json:"input"`
	Tools              []FunctionTool `json:"tools,omitempty"`
	PreviousResponseID string         `json:"previous_response_id,omitempty"`
	Temperature        *float64       `json:"temperature,omitempty"`
}

// Response is the subset of the Responses API response the orchestrator
// consumes. Output items the loop does not understand are preserved so
// the final answer can still be extracted from them.
type Response struct {
	ID         string       `json:"id"`
	Model      string       `json:"model,omitempty"`
	Status     string       `json:"status,omitempty"`
	Output     []OutputItem `json:"output"`
	OutputText string       `json:"output_text,omitempty"`
	Usage      *Usage       `json:"usage,omitempty"`
}

// OutputItem is one typed entry of the response output array.
type OutputItem struct {
	Type      string        `json:"type"`
	ID        string        `json:"id,omitempty"`
	Role      string        `json:"role,omitempty"`
	CallID    string        `json:"call_id,omitempty"`
	Name      string        `json:"name,omitempty"`
	Arguments string        `json:"arguments,omitempty"`
	Text      string        `json:"text,omitempty"`
	Content   []ContentPart `json:"content,omitempty"`
}

// ContentPart is a piece of message content inside an output item.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Usage reports token accounting for one response.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// FunctionCall is a tool invocation the model requested.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// FunctionCalls extracts the function-call items from the response
// output, in order. Other item types (messages, reasoning, ...) are
// ignored here.
func (r *Response) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, item := range r.Output {
		if item.Type != "function_call" || item.CallID == "" || item.Name == "" {
			continue
		}
		calls = append(calls, FunctionCall{
			CallID:    item.CallID,
			Name:      item.Name,
			Arguments: item.Arguments,
		})
	}
	return calls
}

// Text returns the human-readable answer: output_text when the API
// provides it, otherwise the non-blank text fragments of the output
// items joined with blank lines. Empty when the response carries no text.
func (r *Response) Text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	var texts []string
	for _, item := range r.Output {
		if strings.TrimSpace(item.Text) != "" {
			texts = append(texts, item.Text)
		}
		for _, part := range item.Content {
			if strings.TrimSpace(part.Text) != "" {
				texts = append(texts, part.Text)
			}
		}
	}
	return strings.Join(texts, "\n\n")
}

// RequestError reports a failed Responses API call. StatusCode is zero
// when the request never reached the API (network error).
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm request failed (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("llm request failed: %s", e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }
