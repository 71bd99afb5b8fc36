package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/siteagent/siteagent/internal/orchestrator"
	"github.com/siteagent/siteagent/internal/store"
)

type commandRequest struct {
	OrganizationLLMID string `json:"organizationLlmId"`
	Command           string `json:"command"`
}

// commandRun is everything one orchestration needs: the resolved
// credential, the organization's active plugin registration, the plugin
// catalog and a loop wired to them.
type commandRun struct {
	llm          *store.OrganizationLLM
	registration *store.OrganizationMCPPlugin
	plugin       *store.MCPPlugin
	loop         *orchestrator.Loop
}

// resolveCommandRun walks credential -> active registration -> plugin
// and builds the loop. Resolution failures keep the store taxonomy so
// the transports map them uniformly.
func (s *Server) resolveCommandRun(ctx context.Context, organizationLLMID string) (*commandRun, error) {
	credential, err := s.llms.Get(ctx, organizationLLMID)
	if err != nil {
		return nil, err
	}
	registration, err := s.registrations.FindActiveByOrganization(ctx, credential.OrganizationID)
	if err != nil {
		return nil, err
	}
	plugin, err := s.plugins.Get(ctx, registration.MCPPluginID)
	if err != nil {
		return nil, err
	}

	loop := &orchestrator.Loop{
		Client:      s.newClient(credential.APIKey),
		Executor:    s.executor,
		Model:       s.model,
		Temperature: s.temperature,
		PluginName:  plugin.Name,
		Credentials: registration.Config,
		Tools:       orchestrator.AdaptTools(plugin.Tools),
		MaxRounds:   s.maxRounds,
	}
	return &commandRun{
		llm:          credential,
		registration: registration,
		plugin:       plugin,
		loop:         loop,
	}, nil
}

type commandResult struct {
	OrganizationLLM       *store.OrganizationLLM       `json:"organizationLlm"`
	OrganizationMCPPlugin *store.OrganizationMCPPlugin `json:"organizationMcpPlugin"`
	MCPPlugin             *store.MCPPlugin             `json:"mcpPlugin"`
	Response              any                          `json:"response"`
}

type orchestrationTrace struct {
	FirstResponse any                        `json:"firstResponse"`
	FunctionCalls []orchestrator.ExecutedCall `json:"functionCalls"`
	FinalResponse any                        `json:"finalResponse"`
}

// commandResponse shapes the run result: the raw first response when no
// tool calls executed, otherwise the full trace.
func commandResponse(result *orchestrator.Result) any {
	if len(result.FunctionCalls) == 0 {
		return result.FirstResponse
	}
	return orchestrationTrace{
		FirstResponse: result.FirstResponse,
		FunctionCalls: result.FunctionCalls,
		FinalResponse: result.FinalResponse,
	}
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "invalid body")
		return
	}
	if req.OrganizationLLMID == "" || strings.TrimSpace(req.Command) == "" {
		writeError(w, http.StatusBadRequest, "E_BAD_REQUEST", "organizationLlmId and command are required")
		return
	}

	run, err := s.resolveCommandRun(r.Context(), req.OrganizationLLMID)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	result, err := run.loop.Execute(r.Context(), req.Command, "")
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, commandResult{
		OrganizationLLM:       run.llm,
		OrganizationMCPPlugin: run.registration,
		MCPPlugin:             run.plugin,
		Response:              commandResponse(result),
	})
}
