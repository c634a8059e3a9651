// Package main provides the entry point for the router supervisor MCP
// server.
//
// This server is designed to be spawned as a child process by an MCP
// client and communicates via stdio using the Model Context Protocol. It
// matches a session's natural-language goal to a workflow, resolves its
// parameters, and intercepts individual tool calls against a firewall and
// override rule set, exposing set_goal, execute, process_call,
// import_workflow, and get_status as tools.
//
// Environment variables are documented in internal/config.
package main

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"routersupervisor/internal/adapter"
	"routersupervisor/internal/catalog"
	"routersupervisor/internal/config"
	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/executor"
	"routersupervisor/internal/firewall"
	"routersupervisor/internal/matcher"
	"routersupervisor/internal/mcpserver"
	"routersupervisor/internal/model"
	"routersupervisor/internal/modifier"
	"routersupervisor/internal/registry"
	"routersupervisor/internal/resolver"
	"routersupervisor/internal/scene"
	"routersupervisor/internal/supervisor"
	"routersupervisor/internal/telemetry"
	"routersupervisor/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("router: failed to load configuration: %v", err)
	}
	log.Printf("router: loaded configuration (environment=%s)", cfg.Server.Environment)

	// Embedding service and vector store are process-wide singletons,
	// constructed exactly once here and threaded through every component
	// that needs them (spec.md §5 "Shared resources").
	embedderCfg := embeddings.ConfigFromEnv()
	embedder := embeddings.NewLocalEmbedder(embedderCfg.Model)
	log.Printf("router: initialized embedder model=%s provider=%s", embedder.Model(), embedder.Provider())

	store, err := vectorstore.New(vectorstore.Config{PersistPath: cfg.Storage.VectorStorePath})
	if err != nil {
		log.Fatalf("router: failed to initialize vector store: %v", err)
	}
	log.Println("router: initialized vector store")

	// Migrate a pre-chromem flat JSON dump, if one is sitting next to the
	// persistent store, before anything reads from it (spec.md §4.2:
	// "legacy on-disk formats are migrated at first startup"). Absence of
	// the file is a no-op.
	if cfg.Storage.VectorStorePath != "" {
		legacyDumpPath := filepath.Join(cfg.Storage.VectorStorePath, "legacy_vectors.json")
		migrated, err := store.MigrateLegacyDump(context.Background(), legacyDumpPath)
		if err != nil {
			log.Fatalf("router: failed to migrate legacy vector dump: %v", err)
		}
		if migrated > 0 {
			log.Printf("router: migrated %d records from legacy vector dump", migrated)
		}
	}

	loaderCfg := catalog.Config{Root: cfg.Storage.CatalogRoot, CachePath: cfg.Storage.CatalogCachePath}
	loader, err := catalog.NewLoader(loaderCfg)
	if err != nil {
		log.Fatalf("router: failed to initialize catalog loader: %v", err)
	}
	defer func() {
		if cerr := loader.Close(); cerr != nil {
			log.Printf("router: warning: failed to close catalog loader: %v", cerr)
		}
	}()

	reg := registry.New()
	semantic := matcher.NewSemanticMatcher(reg, embedder)

	// OnReload is the §4.4 refresh event: every (re)load publishes the new
	// snapshot to the registry and re-embeds any workflow description the
	// Ensemble Matcher's semantic signal doesn't already have cached.
	// LoadAll invokes this once for the initial load too, so the semantic
	// matcher is populated before the server ever serves a request.
	loader.OnReload = func(snap *catalog.Snapshot) {
		reg.Load(snap)
		semantic.Refresh(context.Background())
	}

	snap, err := loader.LoadAll()
	if err != nil {
		log.Fatalf("router: failed to load workflow catalog: %v", err)
	}
	log.Printf("router: loaded %d workflows and %d tools from %s", len(snap.Workflows), len(snap.Tools), cfg.Storage.CatalogRoot)

	keyword := matcher.NewKeywordMatcher(reg)
	pattern := matcher.NewPatternMatcher(reg)
	mods := modifier.NewExtractor(embedder)
	aggregator := matcher.NewAggregator(
		[]matcher.Matcher{keyword, pattern, semantic},
		reg,
		mods,
		matcher.AggregatorConfig{
			ConfidenceHigh:   cfg.Thresholds.ConfidenceHigh,
			ConfidenceMedium: cfg.Thresholds.ConfidenceMedium,
		},
	)

	res := resolver.New(store, embedder, resolver.Config{
		RelevanceWordThreshold: cfg.Thresholds.ModifierWordThreshold,
		MinRelevanceScore:      cfg.Thresholds.RelevanceThreshold,
		MemoryThreshold:        cfg.Thresholds.MemoryThreshold,
	})

	exp := registry.NewExpander(adapter.New(embedder, adapter.Config{
		SemanticThreshold: cfg.Thresholds.AdaptationSemanticThreshold,
	}))

	tools := make([]*model.ToolMetadata, 0, len(snap.Tools))
	for _, t := range snap.Tools {
		tools = append(tools, t)
	}
	fw := firewall.New(tools, nil)

	// The opaque executor (spec.md §1 scope boundary: concrete tool
	// semantics are out of scope) is wired here as the in-memory stand-in;
	// a deployment replaces this with a real executor.Client against its
	// own tool-execution host.
	exec := executor.NewFakeClient()

	analyzer := scene.New(exec, scene.Config{
		CacheTTL: time.Duration(cfg.Performance.CacheTTLSeconds) * time.Second,
	})

	sink := telemetry.NewSink(1000)
	defer sink.Close()

	pipeline := supervisor.New(supervisor.Deps{
		Config:     cfg,
		Analyzer:   analyzer,
		Aggregator: aggregator,
		Resolver:   res,
		Registry:   reg,
		Expander:   exp,
		Firewall:   fw,
		Loader:     loader,
		Store:      store,
		Sink:       sink,
		Semantic:   semantic,
	})
	log.Println("router: wired supervisor pipeline")

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)

	srv := mcpserver.New(pipeline)
	srv.RegisterTools(mcpServer)
	log.Println("router: registered tools: set_goal, execute, process_call, import_workflow, get_status")

	transport := &mcp.StdioTransport{}

	ctx := context.Background()
	log.Println("router: starting MCP server")
	if err := mcpServer.Run(ctx, transport); err != nil {
		log.Fatalf("router: server error: %v", err)
	}
}
