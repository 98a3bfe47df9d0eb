// Command agentsmd generates AGENTS.md files for code repositories.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/agentsmd/internal/adapters/driven/ai"
	"github.com/custodia-labs/agentsmd/internal/adapters/driven/config/file"
	outputfile "github.com/custodia-labs/agentsmd/internal/adapters/driven/output/file"
	"github.com/custodia-labs/agentsmd/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/agentsmd/internal/adapters/driving/cli"
	"github.com/custodia-labs/agentsmd/internal/connectors/filesystem"
	"github.com/custodia-labs/agentsmd/internal/connectors/git"
	"github.com/custodia-labs/agentsmd/internal/connectors/github"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driven"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
	"github.com/custodia-labs/agentsmd/internal/core/services"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("open prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	// Run history is diagnostics only; generation works without it.
	var runs driven.RunStore
	store, err := sqlite.NewStore("")
	if err != nil {
		logger.Warn("run history unavailable: %v", err)
	} else {
		defer func() { _ = store.Close() }()
		runs = store
	}

	var history driving.RunHistoryService
	if runs != nil {
		history = services.NewRunHistoryService(runs)
	}

	cli.SetVersion(version)
	cli.SetServices(cli.Services{
		Settings:   settingsService,
		Runs:       history,
		Generators: newGeneratorFactory(ctx, prompts, runs),
	})
	return cli.Execute(ctx)
}

// newGeneratorFactory wires a pipeline for resolved settings.
func newGeneratorFactory(ctx context.Context, prompts driven.PromptStore, runs driven.RunStore) driving.GeneratorFactory {
	return func(opts driving.GeneratorOptions) (driving.AgentsGenerator, func(), error) {
		settings := opts.Settings

		llm, err := ai.Init(&settings.LLM)
		if err != nil {
			return nil, func() {}, err
		}

		gh, err := github.NewClient(ctx, settings.GitHub.Token)
		if err != nil {
			llm.Close()
			return nil, func() {}, fmt.Errorf("github client: %w", err)
		}
		gitClient := git.NewClient()

		deps := services.PipelineDeps{
			LLM:            llm.LLMService,
			ExplorationLLM: llm.ExplorationService,
			Prompts:        prompts,
			Materializer:   filesystem.NewMaterializer(),
			Writer:         outputfile.NewWriter(settings.Output.Dir),
			Fetcher:        gitClient,
			Runs:           runs,
			RevertHistory:  gitClient,
			PullRequests:   github.NewPullRequests(gh),
		}
		if opts.ViaAPI {
			deps.Materializer = github.NewTreeMaterializer(gh)
			deps.Fetcher = nil
		}

		pipeline, err := services.NewPipeline(deps, settings.Pipeline)
		if err != nil {
			llm.Close()
			return nil, func() {}, err
		}
		return pipeline, llm.Close, nil
	}
}
