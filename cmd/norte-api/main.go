package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/danielsoto/norte-agent/internal/adapters/http"
	"github.com/danielsoto/norte-agent/internal/adapters/llm"
	firestorestore "github.com/danielsoto/norte-agent/internal/adapters/storage/firestore"
	memstore "github.com/danielsoto/norte-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/danielsoto/norte-agent/internal/adapters/storage/sqlite"
	"github.com/danielsoto/norte-agent/internal/adapters/telemetry"
	"github.com/danielsoto/norte-agent/internal/app/conversation"
	"github.com/danielsoto/norte-agent/internal/app/knowledge"
	"github.com/danielsoto/norte-agent/internal/app/stage"
	"github.com/danielsoto/norte-agent/internal/config"
	"github.com/danielsoto/norte-agent/internal/domain"
	"github.com/danielsoto/norte-agent/internal/observability"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// Model collaborator: mock for local dev, Vertex on GCP.
	var (
		model domain.ModelClient
		err   error
	)
	if cfg.UseMockLLM {
		log.Println("[LLM] Using MOCK model client")
		model = llm.NewMockModel()
	} else {
		log.Println("[LLM] Using Vertex model client")
		model, err = llm.NewVertexClient(ctx)
		if err != nil {
			log.Fatalf("error initializing Vertex model client: %v", err)
		}
	}

	// Storage: memory, SQLite or Firestore.
	var store domain.SessionStore
	switch cfg.StorageBackend {
	case "firestore":
		if cfg.GCPProjectID == "" {
			log.Fatal("NORTE_GCP_PROJECT is required for Firestore storage backend")
		}
		log.Printf("[STORE] Using Firestore storage (project=%s)", cfg.GCPProjectID)
		store, err = firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Fatalf("error initializing Firestore store: %v", err)
		}

	case "sqlite":
		log.Printf("[STORE] Using SQLite storage (path=%s)", cfg.SQLitePath)
		store, err = sqlitestore.NewStore(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing SQLite store: %v", err)
		}

	default:
		log.Println("[STORE] Using in-memory storage")
		store = memstore.NewSessionStore()
	}

	// Stage criteria table: defaults, optionally overridden from YAML.
	table := stage.DefaultTable()
	if cfg.StageConfigPath != "" {
		table, err = stage.LoadTable(cfg.StageConfigPath)
		if err != nil {
			log.Fatalf("error loading stage config: %v", err)
		}
		log.Printf("[STAGE] Loaded criteria table from %s", cfg.StageConfigPath)
	}

	sink := telemetry.NewLogSink(observability.Logger())

	svc := conversation.NewService(model, store, sink, table, knowledge.Params{
		BaseWeight: cfg.BaseWeight,
		Increment:  cfg.WeightIncrement,
	})

	handler := httpadapter.NewServer(svc)

	port := ":" + cfg.Port
	log.Println("Norte API listening on port:", port)
	if err := http.ListenAndServe(port, handler); err != nil {
		log.Fatal(err)
	}
}
