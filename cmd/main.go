package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"docqa/internal/config"
	"docqa/internal/embedding"
	"docqa/internal/generator"
	"docqa/internal/helper"
	"docqa/internal/llm"
	"docqa/internal/rag"
	"docqa/internal/store"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the config file")
	ask := flag.String("ask", "", "Question to answer from the indexed documents")
	askIntent := flag.String("intent", "", "Explicit query intent: factual, summary or description")
	clearIndex := flag.Bool("clear-index", false, "Clear the index before indexing (or alone, to just clear)")
	provider := flag.String("provider", "", "Override LLM provider: groq or ollama")
	model := flag.String("model", "", "Override LLM model name")
	offline := flag.Bool("offline", false, "Forbid non-local provider calls")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *provider != "" {
		cfg.Provider = *provider
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *offline {
		cfg.Offline = true
	}

	log.Debug().
		Str("provider", cfg.Provider).
		Str("model", cfg.Model).
		Str("groq_api_key", config.MaskedKey(cfg.GroqAPIKey)).
		Bool("offline", cfg.Offline).
		Msg("Loaded config")

	paths := flag.Args()
	if *ask == "" && !*clearIndex && len(paths) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx := context.Background()

	vectorStore, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}

	embedder, err := embedding.NewOllamaEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}

	// The orchestrator validates provider credentials, which
	// indexing does not need; build it only when answering.
	var completion generator.CompletionService
	if *ask != "" {
		orch, err := llm.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing LLM orchestrator")
		}
		completion = orch
	}

	pipeline := rag.New(cfg, vectorStore, embedder, completion)

	if *clearIndex && len(paths) == 0 {
		removed, err := pipeline.ClearIndex(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error clearing index")
		}
		fmt.Printf("Index cleared (%d chunks removed)\n\n", removed)
	}

	if len(paths) > 0 {
		result, err := pipeline.IndexPaths(ctx, paths, *clearIndex)
		if err != nil {
			log.Fatal().Err(err).Msg("Error indexing documents")
		}
		fmt.Printf("Indexed %d documents into %d chunks (skipped %d, index size %d)\n\n",
			result.DocumentsIndexed, result.ChunksIndexed, result.FilesSkipped, result.FinalIndexSize)
		if *verbose {
			helper.PrettyPrint(result)
		}
	}

	if *ask != "" {
		answer := pipeline.Answer(ctx, *ask, *askIntent)

		fmt.Printf("[%s]\n\n", answer.Intent)
		fmt.Printf("%s\n", answer.Answer)
		if len(answer.Sources) > 0 {
			fmt.Printf("\nSources:\n")
			for i, src := range answer.Sources {
				fmt.Printf("%d. %s\n", i+1, src)
			}
		}
	}
}

func newStore(ctx context.Context, cfg *config.Config) (store.VectorStore, error) {
	if cfg.Store.Backend == "postgres" {
		return store.NewPGStore(ctx, cfg.Store.PostgresDSN, cfg.Store.PostgresPassword, cfg.Store.Debug)
	}
	return store.NewChromemStore(cfg.Store.Path, cfg.Store.Collection, cfg.Store.InMemory)
}
