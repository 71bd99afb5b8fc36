package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/siteagent/siteagent/internal/llm"
)

type fakeClient struct {
	responses []*llm.Response
	requests  []*llm.Request
	failAt    int // 1-based request index that fails; 0 = never
}

func (f *fakeClient) CreateResponse(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.requests = append(f.requests, req)
	n := len(f.requests)
	if f.failAt > 0 && n == f.failAt {
		return nil, &llm.RequestError{StatusCode: 429, Message: "rate limited"}
	}
	if n > len(f.responses) {
		return nil, fmt.Errorf("no scripted response for request %d", n)
	}
	return f.responses[n-1], nil
}

type fakeExecutor struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeExecutor) ExecuteTool(_ context.Context, _, tool string, _ map[string]any, _ json.RawMessage) (any, error) {
	f.calls = append(f.calls, tool)
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	return f.results[tool], nil
}

type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string   { return "search console says no" }
func (e *upstreamError) HTTPStatus() int { return e.status }

func callResponse(id string, calls ...llm.OutputItem) *llm.Response {
	return &llm.Response{ID: id, Output: calls}
}

func fnCall(callID, name, args string) llm.OutputItem {
	return llm.OutputItem{Type: "function_call", CallID: callID, Name: name, Arguments: args}
}

func catalog() []llm.FunctionTool {
	return AdaptTools([]ToolDefinition{
		{Name: "listSitemaps"},
		{Name: "fetchProjects"},
	})
}

func newLoop(client llm.Client, exec ToolExecutor) *Loop {
	return &Loop{
		Client:     client,
		Executor:   exec,
		Model:      "gpt-4.1",
		PluginName: "Google Search Console",
		Tools:      catalog(),
	}
}

func TestLoopNoFunctionCalls(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		{ID: "resp_1", OutputText: "Nothing to do."},
	}}
	exec := &fakeExecutor{}

	result, err := newLoop(client, exec).Execute(context.Background(), "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if result.FirstResponse != result.FinalResponse {
		t.Error("first and final response should be the same object")
	}
	if len(result.FunctionCalls) != 0 {
		t.Errorf("function calls = %d", len(result.FunctionCalls))
	}
	if len(client.requests) != 1 {
		t.Errorf("requests = %d", len(client.requests))
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor calls = %v", exec.calls)
	}
}

func TestLoopSingleRound(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "listSitemaps", `{"siteUrl":"https://ex.com"}`)),
		{ID: "resp_2", OutputText: "One sitemap found."},
	}}
	exec := &fakeExecutor{results: map[string]any{"listSitemaps": []string{"sitemap.xml"}}}

	result, err := newLoop(client, exec).Execute(context.Background(), "list my sitemaps", "")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.FunctionCalls) != 1 {
		t.Fatalf("function calls = %d", len(result.FunctionCalls))
	}
	call := result.FunctionCalls[0]
	if call.CallID != "c1" || call.Name != "listSitemaps" {
		t.Errorf("call = %+v", call)
	}
	if !reflect.DeepEqual(call.Arguments, map[string]any{"siteUrl": "https://ex.com"}) {
		t.Errorf("arguments = %v", call.Arguments)
	}

	if len(client.requests) != 2 {
		t.Fatalf("requests = %d", len(client.requests))
	}
	followUp := client.requests[1]
	if followUp.PreviousResponseID != "resp_1" {
		t.Errorf("previous_response_id = %q", followUp.PreviousResponseID)
	}
	outputs, ok := followUp.Input.([]llm.FunctionCallOutput)
	if !ok || len(outputs) != 1 {
		t.Fatalf("follow-up input = %#v", followUp.Input)
	}
	if outputs[0].CallID != "c1" || outputs[0].Output != `["sitemap.xml"]` {
		t.Errorf("output = %+v", outputs[0])
	}
	if outputs[0].Type != "function_call_output" {
		t.Errorf("output type = %q", outputs[0].Type)
	}
	if len(followUp.Tools) != 2 {
		t.Errorf("follow-up tools = %d, want full catalog", len(followUp.Tools))
	}

	if result.FirstResponse.ID != "resp_1" || result.FinalResponse.ID != "resp_2" {
		t.Errorf("first = %q final = %q", result.FirstResponse.ID, result.FinalResponse.ID)
	}
}

func TestLoopMultiRoundTermination(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "fetchProjects", "")),
		callResponse("resp_2", fnCall("c2", "listSitemaps", `{"siteUrl":"https://ex.com"}`)),
		{ID: "resp_3", OutputText: "done"},
	}}
	exec := &fakeExecutor{results: map[string]any{"fetchProjects": []any{}, "listSitemaps": []any{}}}

	result, err := newLoop(client, exec).Execute(context.Background(), "audit", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(client.requests) != 3 {
		t.Errorf("requests = %d", len(client.requests))
	}
	if len(result.FunctionCalls) != 2 {
		t.Errorf("executed calls = %d", len(result.FunctionCalls))
	}
	if client.requests[2].PreviousResponseID != "resp_2" {
		t.Errorf("round 2 previous_response_id = %q", client.requests[2].PreviousResponseID)
	}
}

func TestLoopOrderPreserved(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1",
			fnCall("c1", "fetchProjects", ""),
			fnCall("c2", "listSitemaps", `{"siteUrl":"https://ex.com"}`),
		),
		{ID: "resp_2"},
	}}
	exec := &fakeExecutor{results: map[string]any{"fetchProjects": "p", "listSitemaps": "s"}}

	result, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	if err != nil {
		t.Fatal(err)
	}

	outputs := client.requests[1].Input.([]llm.FunctionCallOutput)
	if len(outputs) != 2 || outputs[0].CallID != "c1" || outputs[1].CallID != "c2" {
		t.Errorf("follow-up order = %+v", outputs)
	}
	if result.FunctionCalls[0].CallID != "c1" || result.FunctionCalls[1].CallID != "c2" {
		t.Errorf("trace order = %+v", result.FunctionCalls)
	}
	if !reflect.DeepEqual(exec.calls, []string{"fetchProjects", "listSitemaps"}) {
		t.Errorf("execution order = %v", exec.calls)
	}
}

func TestLoopToolUnavailable(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "deleteEverything", "{}")),
	}}
	exec := &fakeExecutor{}

	_, err := newLoop(client, exec).Execute(context.Background(), "clean up", "")
	var unavailable *ToolUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v", err)
	}
	if unavailable.Tool != "deleteEverything" {
		t.Errorf("tool = %q", unavailable.Tool)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor was invoked: %v", exec.calls)
	}
}

func TestLoopUnknownToolBlocksWholeRound(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1",
			fnCall("c1", "listSitemaps", "{}"),
			fnCall("c2", "deleteEverything", "{}"),
		),
	}}
	exec := &fakeExecutor{results: map[string]any{"listSitemaps": "ok"}}

	_, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	var unavailable *ToolUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("error = %v", err)
	}
	if len(exec.calls) != 0 {
		t.Errorf("no executor call should happen in a round with an unknown tool, got %v", exec.calls)
	}
}

func TestLoopInvalidArguments(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "listSitemaps", `[1,2,3]`)),
	}}
	exec := &fakeExecutor{}

	_, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	var invalid *InvalidArgumentsError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v", err)
	}
	if len(exec.calls) != 0 {
		t.Errorf("executor was invoked: %v", exec.calls)
	}
}

func TestLoopBlankArgumentsParseToEmptyObject(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "fetchProjects", "  ")),
		{ID: "resp_2"},
	}}
	var gotArgs map[string]any
	exec := &fakeExecutor{results: map[string]any{"fetchProjects": []any{}}}

	result, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	if err != nil {
		t.Fatal(err)
	}
	gotArgs = result.FunctionCalls[0].Arguments
	if !reflect.DeepEqual(gotArgs, map[string]any{}) {
		t.Errorf("arguments = %v", gotArgs)
	}
}

func TestLoopToolFailureAborts(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "listSitemaps", "{}")),
	}}
	toolErr := &upstreamError{status: 502}
	exec := &fakeExecutor{errs: map[string]error{"listSitemaps": toolErr}}

	_, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	if !errors.Is(err, toolErr) {
		t.Fatalf("error = %v, want executor error propagated", err)
	}
	if len(client.requests) != 1 {
		t.Errorf("requests = %d, no follow-up should be sent", len(client.requests))
	}
}

func TestLoopToolFailureContinues(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		callResponse("resp_1", fnCall("c1", "listSitemaps", "{}")),
		{ID: "resp_2", OutputText: "The sitemap lookup failed."},
	}}
	exec := &fakeExecutor{errs: map[string]error{"listSitemaps": &upstreamError{status: 502}}}

	var events []RoundEvent
	loop := newLoop(client, exec)
	loop.ContinueOnToolError = true
	loop.OnRound = func(ev RoundEvent) { events = append(events, ev) }

	result, err := loop.Execute(context.Background(), "go", "")
	if err != nil {
		t.Fatal(err)
	}

	if len(result.FunctionCalls) != 1 {
		t.Fatalf("executed calls = %d", len(result.FunctionCalls))
	}
	payload, ok := result.FunctionCalls[0].Result.(map[string]any)
	if !ok {
		t.Fatalf("result = %#v", result.FunctionCalls[0].Result)
	}
	if payload["error"] != true {
		t.Errorf("error flag = %v", payload["error"])
	}
	if payload["message"] != "search console says no" {
		t.Errorf("message = %v", payload["message"])
	}
	if payload["statusCode"] != 502 {
		t.Errorf("statusCode = %v", payload["statusCode"])
	}

	if len(events) != 1 || events[0].Round != 1 || events[0].ResponseID != "resp_1" {
		t.Errorf("events = %+v", events)
	}

	// The model still receives the error payload as the call output.
	outputs := client.requests[1].Input.([]llm.FunctionCallOutput)
	var decoded map[string]any
	if err := json.Unmarshal([]byte(outputs[0].Output), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["error"] != true {
		t.Errorf("follow-up output = %v", decoded)
	}
}

func TestLoopRoundLimit(t *testing.T) {
	// The model never stops asking for tools.
	var responses []*llm.Response
	for i := 1; i <= 10; i++ {
		responses = append(responses, callResponse(
			fmt.Sprintf("resp_%d", i),
			fnCall(fmt.Sprintf("c%d", i), "fetchProjects", ""),
		))
	}
	client := &fakeClient{responses: responses}
	exec := &fakeExecutor{results: map[string]any{"fetchProjects": []any{}}}

	loop := newLoop(client, exec)
	loop.MaxRounds = 3

	_, err := loop.Execute(context.Background(), "go", "")
	var limit *RoundLimitError
	if !errors.As(err, &limit) {
		t.Fatalf("error = %v", err)
	}
	if limit.Limit != 3 {
		t.Errorf("limit = %d", limit.Limit)
	}
	if len(exec.calls) != 3 {
		t.Errorf("executed rounds = %d, want 3", len(exec.calls))
	}
}

func TestLoopLLMFailurePropagates(t *testing.T) {
	client := &fakeClient{
		responses: []*llm.Response{callResponse("resp_1", fnCall("c1", "fetchProjects", ""))},
		failAt:    2,
	}
	exec := &fakeExecutor{results: map[string]any{"fetchProjects": []any{}}}

	_, err := newLoop(client, exec).Execute(context.Background(), "go", "")
	var reqErr *llm.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v", err)
	}
	if reqErr.StatusCode != 429 {
		t.Errorf("status = %d", reqErr.StatusCode)
	}
}

func TestLoopContinuesConversation(t *testing.T) {
	client := &fakeClient{responses: []*llm.Response{
		{ID: "resp_9", OutputText: "continuing"},
	}}
	exec := &fakeExecutor{}

	_, err := newLoop(client, exec).Execute(context.Background(), "and then?", "resp_8")
	if err != nil {
		t.Fatal(err)
	}
	if client.requests[0].PreviousResponseID != "resp_8" {
		t.Errorf("previous_response_id = %q", client.requests[0].PreviousResponseID)
	}
}
