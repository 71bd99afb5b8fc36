package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siteagent/siteagent/internal/continuity"
	"github.com/siteagent/siteagent/internal/llm"
	"github.com/siteagent/siteagent/internal/mcp/gsc"
	"github.com/siteagent/siteagent/internal/orchestrator"
	"github.com/siteagent/siteagent/internal/secret"
	"github.com/siteagent/siteagent/internal/store"
)

type fakeLLM struct {
	mu        sync.Mutex
	responses []*llm.Response
	requests  []*llm.Request
}

func (f *fakeLLM) CreateResponse(_ context.Context, req *llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.requests) > len(f.responses) {
		return nil, &llm.RequestError{StatusCode: 500, Message: "no scripted response"}
	}
	return f.responses[len(f.requests)-1], nil
}

func (f *fakeLLM) recorded() []*llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*llm.Request(nil), f.requests...)
}

type fakeExecutor struct {
	mu         sync.Mutex
	results    map[string]any
	errs       map[string]error
	lastPlugin string
	lastCreds  json.RawMessage
	calls      []string
}

func (f *fakeExecutor) ExecuteTool(_ context.Context, plugin, tool string, _ map[string]any, credentials json.RawMessage) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPlugin = plugin
	f.lastCreds = credentials
	f.calls = append(f.calls, tool)
	if err, ok := f.errs[tool]; ok {
		return nil, err
	}
	return f.results[tool], nil
}

type testEnv struct {
	ts           *httptest.Server
	llm          *fakeLLM
	exec         *fakeExecutor
	db           *store.DB
	organization *store.Organization
	credential   *store.OrganizationLLM
	plugin       *store.MCPPlugin
	registration *store.OrganizationMCPPlugin
	apiKeysSeen  []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := store.Open(store.DriverSQLite, t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	keychain, err := secret.NewKeychain("server-test-secret")
	if err != nil {
		t.Fatal(err)
	}

	env := &testEnv{
		llm:  &fakeLLM{},
		exec: &fakeExecutor{results: map[string]any{}},
		db:   db,
	}

	env.organization, err = store.NewOrganizationStore(db).Create(ctx, store.CreateOrganizationParams{
		Name: "Acme", Slug: "acme",
	})
	if err != nil {
		t.Fatal(err)
	}
	env.credential, err = store.NewOrganizationLLMStore(db, keychain).Create(ctx, store.CreateOrganizationLLMParams{
		OrganizationID: env.organization.ID, Provider: "openai", APIKey: "sk-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	env.plugin, err = store.NewMCPPluginStore(db).Create(ctx, store.CreateMCPPluginParams{
		Name:        "Google Search Console",
		Description: "Search Console read-only tools",
		Tools: []orchestrator.ToolDefinition{
			{Name: "fetchProjects", Description: "Lists properties"},
			{Name: "listSitemaps", Description: "Lists sitemaps"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	env.registration, err = store.NewOrganizationMCPPluginStore(db).Create(ctx, store.CreateOrganizationMCPPluginParams{
		MCPPluginID:    env.plugin.ID,
		OrganizationID: env.organization.ID,
		Config:         json.RawMessage(`{"type":"service_account"}`),
	})
	if err != nil {
		t.Fatal(err)
	}

	srv := New(Options{
		DB:       db,
		Keychain: keychain,
		Executor: env.exec,
		GSC:      gsc.NewConnector(),
		NewLLMClient: func(apiKey string) llm.Client {
			env.apiKeysSeen = append(env.apiKeysSeen, apiKey)
			return env.llm
		},
		Continuity: continuity.NewMemoryStore(time.Minute),
		Model:      "gpt-4.1",
		MaxRounds:  20,
	})
	env.ts = httptest.NewServer(srv.Router())
	t.Cleanup(env.ts.Close)
	return env
}

func (env *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(env.ts.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatal(err)
	}
}

func fnCallItem(callID, name, args string) llm.OutputItem {
	return llm.OutputItem{Type: "function_call", CallID: callID, Name: name, Arguments: args}
}

func TestCommandOrchestratorNoFunctionCalls(t *testing.T) {
	env := newTestEnv(t)
	env.llm.responses = []*llm.Response{
		{ID: "resp_1", OutputText: "You have 3 properties."},
	}

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "how many properties do I have?",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		OrganizationLLM       map[string]any `json:"organizationLlm"`
		OrganizationMCPPlugin map[string]any `json:"organizationMcpPlugin"`
		MCPPlugin             map[string]any `json:"mcpPlugin"`
		Response              map[string]any `json:"response"`
	}
	decodeResponse(t, resp, &body)

	if body.Response["id"] != "resp_1" {
		t.Errorf("response = %v", body.Response)
	}
	if _, ok := body.Response["firstResponse"]; ok {
		t.Error("zero-call run should return the raw response, not a trace")
	}
	if body.OrganizationLLM["id"] != env.credential.ID {
		t.Errorf("organizationLlm = %v", body.OrganizationLLM)
	}
	if _, ok := body.OrganizationLLM["apiKey"]; ok {
		t.Error("apiKey serialized in response")
	}
	if body.MCPPlugin["name"] != "Google Search Console" {
		t.Errorf("mcpPlugin = %v", body.MCPPlugin)
	}

	if len(env.apiKeysSeen) != 1 || env.apiKeysSeen[0] != "sk-test" {
		t.Errorf("decrypted api keys seen = %v", env.apiKeysSeen)
	}
}

func TestCommandOrchestratorSingleRound(t *testing.T) {
	env := newTestEnv(t)
	env.llm.responses = []*llm.Response{
		{ID: "resp_1", Output: []llm.OutputItem{fnCallItem("c1", "listSitemaps", `{"siteUrl":"https://ex.com"}`)}},
		{ID: "resp_2", OutputText: "One sitemap."},
	}
	env.exec.results["listSitemaps"] = []string{"sitemap.xml"}

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "list my sitemaps",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var body struct {
		Response struct {
			FirstResponse map[string]any   `json:"firstResponse"`
			FunctionCalls []map[string]any `json:"functionCalls"`
			FinalResponse map[string]any   `json:"finalResponse"`
		} `json:"response"`
	}
	decodeResponse(t, resp, &body)

	if body.Response.FirstResponse["id"] != "resp_1" || body.Response.FinalResponse["id"] != "resp_2" {
		t.Errorf("trace = %+v", body.Response)
	}
	if len(body.Response.FunctionCalls) != 1 {
		t.Fatalf("functionCalls = %+v", body.Response.FunctionCalls)
	}
	call := body.Response.FunctionCalls[0]
	if call["callId"] != "c1" || call["name"] != "listSitemaps" {
		t.Errorf("call = %v", call)
	}

	if env.exec.lastPlugin != "Google Search Console" {
		t.Errorf("plugin passed to executor = %q", env.exec.lastPlugin)
	}
	if string(env.exec.lastCreds) != `{"type":"service_account"}` {
		t.Errorf("credentials passed to executor = %s", env.exec.lastCreds)
	}

	requests := env.llm.recorded()
	if len(requests) != 2 || requests[1].PreviousResponseID != "resp_1" {
		t.Errorf("follow-up requests = %+v", requests)
	}
}

func TestCommandOrchestratorToolUnavailable(t *testing.T) {
	env := newTestEnv(t)
	env.llm.responses = []*llm.Response{
		{ID: "resp_1", Output: []llm.OutputItem{fnCallItem("c1", "deleteEverything", "{}")}},
	}

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "clean up",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	decodeResponse(t, resp, &body)
	if !strings.Contains(body.Message, "deleteEverything") {
		t.Errorf("error body = %+v", body)
	}
	if len(env.exec.calls) != 0 {
		t.Errorf("executor calls = %v", env.exec.calls)
	}
}

func TestCommandOrchestratorToolFailureSurfacesStatus(t *testing.T) {
	env := newTestEnv(t)
	env.llm.responses = []*llm.Response{
		{ID: "resp_1", Output: []llm.OutputItem{fnCallItem("c1", "listSitemaps", "{}")}},
	}
	env.exec.errs = map[string]error{
		"listSitemaps": &mcpStatusError{status: 403, msg: "insufficient permissions"},
	}

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "list my sitemaps",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

type mcpStatusError struct {
	status int
	msg    string
}

func (e *mcpStatusError) Error() string   { return e.msg }
func (e *mcpStatusError) HTTPStatus() int { return e.status }

func TestCommandOrchestratorUnknownCredential(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": "00000000-0000-0000-0000-000000000000",
		"command":           "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(env.llm.recorded()) != 0 {
		t.Error("LLM called despite resolution failure")
	}
}

func TestCommandOrchestratorNoActiveRegistration(t *testing.T) {
	env := newTestEnv(t)
	inactive := false
	_, err := store.NewOrganizationMCPPluginStore(env.db).Update(context.Background(), env.registration.ID,
		store.UpdateOrganizationMCPPluginParams{IsActive: &inactive})
	if err != nil {
		t.Fatal(err)
	}

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "hello",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCommandOrchestratorValidation(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]map[string]string{
		"missing command":    {"organizationLlmId": env.credential.ID},
		"blank command":      {"organizationLlmId": env.credential.ID, "command": "   "},
		"missing credential": {"command": "hello"},
	} {
		resp := env.post(t, "/command-orchestrator", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status = %d", name, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestCommandOrchestratorLLMFailure(t *testing.T) {
	env := newTestEnv(t)
	// No scripted responses: the first LLM call fails.

	resp := env.post(t, "/command-orchestrator", map[string]string{
		"organizationLlmId": env.credential.ID,
		"command":           "hello",
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGSCToolsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.ts.URL + "/mcp-google-search-console-plugin/tools")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Tools []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"tools"`
	}
	decodeResponse(t, resp, &body)
	if len(body.Tools) != 6 {
		t.Fatalf("tools = %+v", body.Tools)
	}
	for _, tool := range body.Tools {
		if tool.Name == "" || tool.Description == "" {
			t.Errorf("tool = %+v", tool)
		}
	}
}

func TestGSCExecuteUnknownTool(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/mcp-google-search-console-plugin/execute", map[string]any{
		"tool": "deleteEverything",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGSCExecuteDispatchesThroughExecutor(t *testing.T) {
	env := newTestEnv(t)
	env.exec.results["fetchProjects"] = []any{map[string]any{"siteUrl": "https://ex.com/"}}

	resp := env.post(t, "/mcp-google-search-console-plugin/execute", map[string]any{
		"tool":        "fetchProjects",
		"credentials": map[string]any{"type": "service_account"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Tool   string `json:"tool"`
		Result any    `json:"result"`
	}
	decodeResponse(t, resp, &body)
	if body.Tool != "fetchProjects" || body.Result == nil {
		t.Errorf("body = %+v", body)
	}
	if env.exec.lastPlugin != gsc.PluginName {
		t.Errorf("plugin = %q", env.exec.lastPlugin)
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	resp, err := http.Get(env.ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
