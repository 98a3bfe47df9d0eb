package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/agentsmd/internal/adapters/driving/tui"
	"github.com/custodia-labs/agentsmd/internal/connectors/filesystem"
	"github.com/custodia-labs/agentsmd/internal/core/domain"
	"github.com/custodia-labs/agentsmd/internal/core/ports/driving"
	"github.com/custodia-labs/agentsmd/internal/logger"
)

// EnvGitHubRepoURL names a GitHub repository when no target flag is given.
const EnvGitHubRepoURL = "GITHUB_REPO_URL"

type generateFlags struct {
	local    string
	github   string
	model    string
	variant  string
	output   string
	viaAPI   bool
	lessons  bool
	failedPR int
	merge    bool
	watch    bool
}

var genFlags generateFlags

// isTerminal reports whether progress can be drawn interactively.
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

var generateCmd = &cobra.Command{
	Use:     "generate [path]",
	Aliases: []string{"gen"},
	Short:   "Generate AGENTS.md for a repository",
	Long: `Explore a repository with the configured language model and write
<output>/<repository>/AGENTS.md.

The repository is a local path (positional or --local) or a GitHub URL
(--github or the GITHUB_REPO_URL environment variable). Without either you
are prompted for a path; an empty answer uses the current directory.

GitHub repositories are cloned shallowly into a temporary directory, or read
through the GitHub API with --via-api.

Examples:
  agentsmd generate .
  agentsmd generate --github https://github.com/owner/repo --variant strict
  agentsmd generate --model anthropic --lessons --merge
  agentsmd generate . --watch`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genFlags.local, "local", "", "path of a local repository")
	f.StringVar(&genFlags.github, "github", "", "URL of a GitHub repository")
	f.StringVarP(&genFlags.model, "model", "m", "", "model as provider or provider/model (see 'agentsmd models')")
	f.StringVar(&genFlags.variant, "variant", "", "section schema: comprehensive or strict")
	f.StringVarP(&genFlags.output, "output", "o", "", "output directory (default from settings)")
	f.BoolVar(&genFlags.viaAPI, "via-api", false, "read GitHub repositories through the API instead of cloning")
	f.BoolVar(&genFlags.lessons, "lessons", false, "learn from reverted commits")
	f.IntVar(&genFlags.failedPR, "failed-pr", 0, "GitHub pull request number to learn from")
	f.BoolVar(&genFlags.merge, "merge", false, "merge into an existing AGENTS.md")
	f.BoolVarP(&genFlags.watch, "watch", "w", false, "regenerate when local files change")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	if generatorFactory == nil {
		return errors.New("generator not configured")
	}

	target, err := resolveTarget(cmd, args, genFlags)
	if err != nil {
		return err
	}
	if genFlags.watch && target.IsRemote() {
		return fmt.Errorf("%w: --watch only works with local repositories", domain.ErrInvalidInput)
	}

	settings, err := runSettings(genFlags)
	if err != nil {
		return err
	}

	generator, cleanup, err := generatorFactory(driving.GeneratorOptions{
		Settings: *settings,
		ViaAPI:   genFlags.viaAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise generator: %w", err)
	}
	defer cleanup()

	req := driving.GenerateRequest{
		Target:   target,
		Lessons:  genFlags.lessons,
		FailedPR: genFlags.failedPR,
		Merge:    genFlags.merge,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := generateOnce(ctx, cmd, generator, req); err != nil {
		return err
	}
	if !genFlags.watch {
		return nil
	}
	return watchAndRegenerate(ctx, cmd, generator, req)
}

// resolveTarget picks the repository from flags, arguments, environment
// or an interactive prompt, in that order.
func resolveTarget(cmd *cobra.Command, args []string, flags generateFlags) (domain.RepoTarget, error) {
	local := flags.local
	if len(args) == 1 {
		if local != "" {
			return domain.RepoTarget{}, fmt.Errorf("%w: give the path either as argument or with --local", domain.ErrInvalidInput)
		}
		local = args[0]
	}
	if local != "" && flags.github != "" {
		return domain.RepoTarget{}, fmt.Errorf("%w: --local and --github are mutually exclusive", domain.ErrInvalidInput)
	}

	switch {
	case flags.github != "":
		return domain.GitHubTarget(flags.github)
	case local != "":
		return domain.LocalTarget(local)
	}

	if url := os.Getenv(EnvGitHubRepoURL); url != "" {
		return domain.GitHubTarget(url)
	}

	cmd.Print("Enter path to local repository (or press Enter for current directory): ")
	path := readLine(bufio.NewReader(cmd.InOrStdin()))
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return domain.RepoTarget{}, fmt.Errorf("resolve current directory: %w", err)
		}
		path = wd
	}
	return domain.LocalTarget(path)
}

// runSettings loads settings and applies the per-run overrides.
func runSettings(flags generateFlags) (*domain.AppSettings, error) {
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if flags.model != "" {
		if err := settingsService.ApplyModel(settings, flags.model); err != nil {
			return nil, err
		}
	}
	if flags.variant != "" {
		variant, err := domain.ParseSchemaVariant(flags.variant)
		if err != nil {
			return nil, err
		}
		settings.Pipeline.Variant = variant
	}
	if flags.output != "" {
		settings.Output.Dir = flags.output
	}
	return settings, nil
}

func generateOnce(ctx context.Context, cmd *cobra.Command, generator driving.AgentsGenerator, req driving.GenerateRequest) error {
	var (
		result *driving.GenerateResult
		err    error
	)
	if isTerminal() {
		stages := tui.Stages(req.Lessons || req.FailedPR > 0)
		result, err = tui.Run(ctx, req.Target.Name, stages,
			func(ctx context.Context, observer func(domain.Event)) (*driving.GenerateResult, error) {
				r := req
				r.Observer = observer
				return generator.Generate(ctx, r)
			})
	} else {
		r := req
		r.Observer = eventPrinter(cmd.ErrOrStderr())
		result, err = generator.Generate(ctx, r)
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	printResult(cmd, result)
	return nil
}

// eventPrinter writes one line per stage transition.
func eventPrinter(w io.Writer) func(domain.Event) {
	return func(ev domain.Event) {
		fmt.Fprintf(w, "[%s] %s\n", ev.Stage, ev.Message)
	}
}

func printResult(cmd *cobra.Command, result *driving.GenerateResult) {
	if result == nil {
		return
	}
	for _, d := range result.Run.Degradations {
		cmd.Printf("Warning: %s: %s\n", d.Stage, d.Message)
	}
	cmd.Printf("AGENTS.md written to %s\n", result.OutputPath)
}

func watchAndRegenerate(ctx context.Context, cmd *cobra.Command, generator driving.AgentsGenerator, req driving.GenerateRequest) error {
	watcher := filesystem.NewWatcher(req.Target.Dir, filesystem.DefaultDebounce)
	defer func() { _ = watcher.Close() }()

	changes, err := watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", req.Target.Dir, err)
	}

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", req.Target.Dir)
	for batch := range changes {
		cmd.Printf("\n%d file(s) changed: %s\n", len(batch), summarisePaths(batch, 3))
		if err := generateOnce(ctx, cmd, generator, req); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("%v", err)
		}
	}
	return nil
}

func summarisePaths(paths []string, limit int) string {
	if len(paths) <= limit {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(paths[:limit], ", "), len(paths)-limit)
}
