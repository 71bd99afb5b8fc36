// Package orchestrator drives the command-orchestration loop: one user
// command becomes a multi-round tool-calling conversation between the
// Responses API and a plugin tool executor, until the model stops
// requesting tools.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/siteagent/siteagent/internal/llm"
)

// DefaultMaxRounds bounds how many tool-executing rounds a single run
// may perform before the run is failed. The upstream API imposes no
// bound of its own.
const DefaultMaxRounds = 20

// ToolExecutor dispatches one named tool call with parsed arguments and
// the plugin registration's credentials blob.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, plugin, tool string, input map[string]any, credentials json.RawMessage) (any, error)
}

// ExecutedCall is one completed tool invocation.
type ExecutedCall struct {
	CallID    string         `json:"callId"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
	Result    any            `json:"result"`
}

// RoundEvent describes one round that executed tool calls. It fires
// before the follow-up request for that round is sent.
type RoundEvent struct {
	Round      int
	Calls      []ExecutedCall
	ResponseID string
}

// Result is the trace of a completed run. FunctionCalls is empty when
// the first response already contained no function calls, in which case
// FirstResponse and FinalResponse are the same response.
type Result struct {
	FirstResponse *llm.Response
	FinalResponse *llm.Response
	FunctionCalls []ExecutedCall
}

// Loop is the per-run state machine. Fields are fixed for the duration
// of one Execute call.
type Loop struct {
	Client      llm.Client
	Executor    ToolExecutor
	Model       string
	Temperature *float64
	PluginName  string
	Credentials json.RawMessage
	Tools       []llm.FunctionTool

	// MaxRounds caps tool-executing rounds; zero means DefaultMaxRounds.
	MaxRounds int

	// ContinueOnToolError records a failed tool call as an
	// {error, message, statusCode?} result and keeps the round going
	// instead of aborting the run. The streaming transport sets this so
	// a live session can let the model react to the failure.
	ContinueOnToolError bool

	// OnRound, when set, is invoked after every round that executed
	// tool calls.
	OnRound func(RoundEvent)
}

// statusCoder is implemented by executor errors that carry an upstream
// HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// Execute runs the loop to completion for one command. A non-empty
// previousResponseID continues an earlier conversation. Any failure
// aborts the run; no partial trace is returned.
func (l *Loop) Execute(ctx context.Context, command, previousResponseID string) (*Result, error) {
	available := make(map[string]struct{}, len(l.Tools))
	for _, tool := range l.Tools {
		available[tool.Name] = struct{}{}
	}

	first, err := l.createResponse(ctx, command, previousResponseID)
	if err != nil {
		runsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	var executed []ExecutedCall
	current := first

	for round := 1; ; round++ {
		calls := current.FunctionCalls()
		if len(calls) == 0 {
			break
		}
		if round > l.maxRounds() {
			runsTotal.WithLabelValues("error").Inc()
			return nil, &RoundLimitError{Limit: l.maxRounds()}
		}

		roundCalls, err := l.executeRound(ctx, calls, available)
		if err != nil {
			runsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		executed = append(executed, roundCalls...)
		roundsTotal.Inc()

		if l.OnRound != nil {
			l.OnRound(RoundEvent{Round: round, Calls: roundCalls, ResponseID: current.ID})
		}

		outputs := make([]llm.FunctionCallOutput, len(roundCalls))
		for i, call := range roundCalls {
			encoded, err := json.Marshal(call.Result)
			if err != nil {
				runsTotal.WithLabelValues("error").Inc()
				return nil, &llm.RequestError{Message: "encode tool result: " + err.Error(), Err: err}
			}
			outputs[i] = llm.FunctionCallOutput{
				Type:   "function_call_output",
				CallID: call.CallID,
				Output: string(encoded),
			}
		}

		current, err = l.createResponse(ctx, outputs, current.ID)
		if err != nil {
			runsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
	}

	runsTotal.WithLabelValues("ok").Inc()
	return &Result{
		FirstResponse: first,
		FinalResponse: current,
		FunctionCalls: executed,
	}, nil
}

// executeRound validates every requested call against the catalog and
// parses its arguments before dispatching any of them, so a bad call
// fails the round with no executor invoked. Calls run sequentially in
// request order; the result order matches.
func (l *Loop) executeRound(ctx context.Context, calls []llm.FunctionCall, available map[string]struct{}) ([]ExecutedCall, error) {
	roundCalls := make([]ExecutedCall, len(calls))
	for i, call := range calls {
		if _, ok := available[call.Name]; !ok {
			return nil, &ToolUnavailableError{Tool: call.Name}
		}
		args, err := ParseArguments(call.Arguments)
		if err != nil {
			return nil, err
		}
		roundCalls[i] = ExecutedCall{CallID: call.CallID, Name: call.Name, Arguments: args}
	}

	for i := range roundCalls {
		call := &roundCalls[i]
		result, err := l.Executor.ExecuteTool(ctx, l.PluginName, call.Name, call.Arguments, l.Credentials)
		if err != nil {
			if !l.ContinueOnToolError {
				toolCallsTotal.WithLabelValues(call.Name, "error").Inc()
				return nil, err
			}
			toolCallsTotal.WithLabelValues(call.Name, "recovered").Inc()
			call.Result = toolErrorPayload(err)
			continue
		}
		toolCallsTotal.WithLabelValues(call.Name, "ok").Inc()
		call.Result = result
	}
	return roundCalls, nil
}

func (l *Loop) createResponse(ctx context.Context, input any, previousResponseID string) (*llm.Response, error) {
	req := &llm.Request{
		Model:              l.Model,
		Input:              input,
		Tools:              l.Tools,
		PreviousResponseID: previousResponseID,
		Temperature:        l.Temperature,
	}
	start := time.Now()
	resp, err := l.Client.CreateResponse(ctx, req)
	llmRequestDuration.Observe(time.Since(start).Seconds())
	return resp, err
}

func (l *Loop) maxRounds() int {
	if l.MaxRounds > 0 {
		return l.MaxRounds
	}
	return DefaultMaxRounds
}

// toolErrorPayload turns an executor failure into the result value a
// continued round feeds back to the model.
func toolErrorPayload(err error) map[string]any {
	payload := map[string]any{
		"error":   true,
		"message": err.Error(),
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatus() > 0 {
		payload["statusCode"] = sc.HTTPStatus()
	}
	return payload
}
