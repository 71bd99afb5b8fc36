// Package server exposes the HTTP and WebSocket transports: the
// resource API for tenants, credentials and plugin registrations, the
// synchronous command-orchestrator endpoint and the streaming command
// channel.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/siteagent/siteagent/internal/continuity"
	"github.com/siteagent/siteagent/internal/llm"
	"github.com/siteagent/siteagent/internal/mcp/gsc"
	"github.com/siteagent/siteagent/internal/orchestrator"
	"github.com/siteagent/siteagent/internal/secret"
	"github.com/siteagent/siteagent/internal/store"
)

// Options collects the server's collaborators.
type Options struct {
	DB       *store.DB
	Keychain *secret.Keychain

	// Executor dispatches tool calls; GSC additionally backs the direct
	// plugin endpoints.
	Executor orchestrator.ToolExecutor
	GSC      *gsc.Connector

	// NewLLMClient builds a Responses client for one credential.
	NewLLMClient func(apiKey string) llm.Client

	// Continuity, when set, lets streaming clients resume a
	// conversation across reconnects via a sessionId.
	Continuity continuity.Store

	Model       string
	Temperature *float64
	MaxRounds   int
}

type Server struct {
	users         *store.UserStore
	organizations *store.OrganizationStore
	members       *store.OrganizationUserStore
	llms          *store.OrganizationLLMStore
	plugins       *store.MCPPluginStore
	registrations *store.OrganizationMCPPluginStore

	executor   orchestrator.ToolExecutor
	gsc        *gsc.Connector
	newClient  func(apiKey string) llm.Client
	continuity continuity.Store

	model       string
	temperature *float64
	maxRounds   int
}

func New(opts Options) *Server {
	return &Server{
		users:         store.NewUserStore(opts.DB),
		organizations: store.NewOrganizationStore(opts.DB),
		members:       store.NewOrganizationUserStore(opts.DB),
		llms:          store.NewOrganizationLLMStore(opts.DB, opts.Keychain),
		plugins:       store.NewMCPPluginStore(opts.DB),
		registrations: store.NewOrganizationMCPPluginStore(opts.DB),
		executor:      opts.Executor,
		gsc:           opts.GSC,
		newClient:     opts.NewLLMClient,
		continuity:    opts.Continuity,
		model:         opts.Model,
		temperature:   opts.Temperature,
		maxRounds:     opts.MaxRounds,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/user", func(r chi.Router) {
		r.Post("/", s.createUser)
		r.Get("/", s.listUsers)
		r.Get("/{id}", s.getUser)
		r.Patch("/{id}", s.updateUser)
		r.Delete("/{id}", s.deleteUser)
	})
	r.Route("/organization", func(r chi.Router) {
		r.Post("/", s.createOrganization)
		r.Get("/", s.listOrganizations)
		r.Get("/{id}", s.getOrganization)
		r.Patch("/{id}", s.updateOrganization)
		r.Delete("/{id}", s.deleteOrganization)
	})
	r.Route("/organization-user", func(r chi.Router) {
		r.Post("/", s.createOrganizationUser)
		r.Get("/", s.listOrganizationUsers)
		r.Get("/{id}", s.getOrganizationUser)
		r.Delete("/{id}", s.deleteOrganizationUser)
	})
	r.Route("/organization-llm", func(r chi.Router) {
		r.Post("/", s.createOrganizationLLM)
		r.Get("/", s.listOrganizationLLMs)
		r.Get("/{id}", s.getOrganizationLLM)
		r.Patch("/{id}", s.updateOrganizationLLM)
		r.Delete("/{id}", s.deleteOrganizationLLM)
	})
	r.Route("/mcp-plugin", func(r chi.Router) {
		r.Post("/", s.createMCPPlugin)
		r.Get("/", s.listMCPPlugins)
		r.Get("/{id}", s.getMCPPlugin)
		r.Patch("/{id}", s.updateMCPPlugin)
		r.Delete("/{id}", s.deleteMCPPlugin)
	})
	r.Route("/organization-mcp-plugin", func(r chi.Router) {
		r.Post("/", s.createRegistration)
		r.Get("/", s.listRegistrations)
		r.Get("/{id}", s.getRegistration)
		r.Patch("/{id}", s.updateRegistration)
		r.Delete("/{id}", s.deleteRegistration)
		r.Get("/by-organization/{orgID}/active", s.getActiveRegistration)
	})
	r.Route("/mcp-google-search-console-plugin", func(r chi.Router) {
		r.Get("/tools", s.listGSCTools)
		r.Post("/execute", s.executeGSCTool)
	})

	r.Post("/command-orchestrator", s.handleCommand)
	r.Get("/ws", s.handleWS)

	return r
}
