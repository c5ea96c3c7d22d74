// Command turnengine runs one bounded agent turn against a configured
// provider, streaming assistant text to the terminal as it arrives.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/opencoreai/turnengine/internal/classify"
	"github.com/opencoreai/turnengine/internal/config"
	"github.com/opencoreai/turnengine/internal/content"
	"github.com/opencoreai/turnengine/internal/dispatch"
	"github.com/opencoreai/turnengine/internal/hooks"
	"github.com/opencoreai/turnengine/internal/logging"
	"github.com/opencoreai/turnengine/internal/session"
	"github.com/opencoreai/turnengine/internal/toolexec"
	"github.com/opencoreai/turnengine/internal/transport"
	"github.com/opencoreai/turnengine/internal/turn"

	"github.com/rs/zerolog"
)

// options holds the CLI flags for one run.
type options struct {
	// Model overrides the provider's default model.
	Model string
	// ConfigPath overrides the provider config file location.
	ConfigPath string
	// HooksPath overrides the hooks TOML config file location.
	HooksPath string
	// Dirs are extra directories added to the tool sandbox allowlist.
	Dirs []string
	// MaxBudgetUSD overrides the provider's configured budget cap.
	MaxBudgetUSD float64
	// Verbose enables debug-level logging.
	Verbose bool
}

func applyFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.Model, "model", "", "model override (alias or provider id)")
	flags.StringVar(&opts.ConfigPath, "config", "", "path to provider config (default ~/.turnengine/config.json)")
	flags.StringVar(&opts.HooksPath, "hooks", "", "path to hooks TOML config")
	flags.StringArrayVar(&opts.Dirs, "add-dir", nil, "additional directory to allow tool access to")
	flags.Float64Var(&opts.MaxBudgetUSD, "max-budget-usd", 0, "override the provider's configured budget cap")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
}

// stdoutSink echoes streamed text deltas directly to the terminal.
type stdoutSink struct{}

func (stdoutSink) WriteDelta(text string) {
	fmt.Print(text)
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "turnengine [prompt]",
		Short: "Run one bounded agent turn against a configured provider.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := ""
			if len(args) > 0 {
				prompt = args[0]
			}
			return run(cmd.Context(), opts, prompt)
		},
	}
	applyFlags(rootCmd.Flags(), opts)
	rootCmd.AddCommand(runsCommand())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
		fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts *options, prompt string) error {
	logger := logging.New(os.Stderr, logLevel(opts.Verbose))
	ctx = logging.WithContext(ctx, logger)

	providerConfig, err := config.LoadProviderConfig(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load provider config: %w", err)
	}
	if opts.MaxBudgetUSD > 0 {
		providerConfig.MaxBudgetUSD = opts.MaxBudgetUSD
	}

	store, err := session.NewStore("")
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolve working directory: %w", err)
	}
	sandbox := toolexec.NewSandbox(append([]string{cwd}, opts.Dirs...))

	registry := dispatch.NewRegistry()
	toolexec.Register(registry, toolexec.Context{Sandbox: sandbox, CWD: cwd})

	hooksConfig, err := hooks.LoadConfig(hooksConfigPath(opts.HooksPath))
	if err != nil {
		return fmt.Errorf("load hooks config: %w", err)
	}
	hookRunner, err := hooks.NewRunner(hooksConfig, convergencePath())
	if err != nil {
		logger.Warn().Err(err).Msg("failed to reset stale convergence file")
	}

	runner := &turn.Runner{
		Client:   transport.NewClient(providerConfig.APIBaseURL, providerConfig.APIKey),
		Retrier:  classify.NewRetrier(),
		Registry: registry,
		Hooks:    hookRunner,
		Sessions: store,
		Provider: providerConfig,
		Sink:     stdoutSink{},
	}

	runID := uuid.NewString()
	result, err := runner.Run(ctx, turn.Request{
		RunID:    runID,
		Model:    config.ResolveModel(providerConfig, opts.Model),
		Messages: []content.Message{content.NewTextMessage(content.RoleUser, prompt)},
		CWD:      cwd,
	})
	if err != nil {
		return err
	}

	fmt.Println()
	summaryStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	fmt.Println(summaryStyle.Render(fmt.Sprintf(
		"stop=%s calls=%d cost=$%.4f duration=%s",
		result.StopReason, result.NumCalls, result.CostUSD, result.Duration)))

	projectHash := session.ProjectHash(cwd)
	if err := store.SaveLastRun(projectHash, runID); err != nil {
		logger.Warn().Err(err).Msg("failed to save last run pointer")
	}
	return nil
}

func runsCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent run ids.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := session.NewStore("")
			if err != nil {
				return err
			}
			runIDs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			for _, id := range runIDs {
				fmt.Println(id)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func logLevel(verbose bool) zerolog.Level {
	if verbose {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

func hooksConfigPath(override string) string {
	if override != "" {
		return override
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".turnengine", "hooks.toml")
}

func convergencePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".turnengine", "convergence.json")
}
