package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/siteagent/siteagent/internal/config"
	"github.com/siteagent/siteagent/internal/continuity"
	"github.com/siteagent/siteagent/internal/janitor"
	"github.com/siteagent/siteagent/internal/llm"
	"github.com/siteagent/siteagent/internal/mcp"
	"github.com/siteagent/siteagent/internal/mcp/gsc"
	"github.com/siteagent/siteagent/internal/secret"
	"github.com/siteagent/siteagent/internal/server"
	"github.com/siteagent/siteagent/internal/store"
	"github.com/siteagent/siteagent/internal/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Security.APIKeySecret == "" {
		return errors.New("security.api_key_secret is required")
	}

	log.Println(version.Get())

	keychain, err := secret.NewKeychain(cfg.Security.APIKeySecret)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Store.Driver, cfg.Store.DataDir, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Printf("store ready (driver=%s)", db.Driver())

	registry := mcp.NewRegistry(mcp.WithToolTimeout(cfg.ToolTimeout()))
	registry.Register(gsc.PluginName, gsc.NewConnector())

	var conversations continuity.Store
	jan := janitor.New()
	if cfg.Continuity.RedisAddr != "" {
		redisStore, err := continuity.NewRedisStore(cfg.Continuity.RedisAddr, cfg.ContinuityTTL())
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer redisStore.Close()
		conversations = redisStore
		log.Printf("continuity: redis at %s", cfg.Continuity.RedisAddr)
	} else {
		memStore := continuity.NewMemoryStore(cfg.ContinuityTTL())
		if err := jan.SchedulePrune(memStore); err != nil {
			return err
		}
		conversations = memStore
		log.Println("continuity: in-memory")
	}
	if err := jan.ScheduleVacuum(db); err != nil {
		return err
	}
	jan.Start()
	defer jan.Stop()

	srv := server.New(server.Options{
		DB:       db,
		Keychain: keychain,
		Executor: registry,
		GSC:      gsc.NewConnector(),
		NewLLMClient: func(apiKey string) llm.Client {
			return llm.NewOpenAIClient(cfg.LLM.BaseURL, apiKey, llm.WithTimeout(cfg.LLMTimeout()))
		},
		Continuity:  conversations,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxRounds:   cfg.Orchestrator.MaxRounds,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Printf("received %s, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
