// -- cmd/run.go --
package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot-cli/internal/agent"
	"github.com/xkilldash9x/webpilot-cli/internal/browser"
	"github.com/xkilldash9x/webpilot-cli/internal/config"
	"github.com/xkilldash9x/webpilot-cli/internal/llmclient"
	"github.com/xkilldash9x/webpilot-cli/internal/observability"
	"github.com/xkilldash9x/webpilot-cli/internal/page"
)

const shutdownTimeout = 20 * time.Second

// runComponents holds everything the run command wires together.
type runComponents struct {
	Manager *browser.Manager
	Session *browser.Session
	Loop    *agent.Executor
}

// Shutdown tears the browser down; safe to call on partial initialization.
func (c *runComponents) Shutdown(logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if c.Manager != nil {
		if err := c.Manager.Shutdown(ctx); err != nil {
			logger.Warn("Browser shutdown incomplete", zap.Error(err))
		}
	}
}

// newRunCmd creates and configures the `run` command.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run [task...]",
		Short: "Starts the browser agent, optionally executing an initial task",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			defer observability.Sync()

			cfg, err := config.NewConfigFromViper(viper.GetViper())
			if err != nil {
				return err
			}
			if err := applyFlagOverrides(cmd, cfg); err != nil {
				return err
			}

			components, err := initializeRunComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown(logger)
				}
				return fmt.Errorf("failed to initialize agent components: %w", err)
			}
			defer components.Shutdown(logger)

			if len(args) > 0 {
				task := strings.Join(args, " ")
				if err := runTask(ctx, components.Loop, task, logger); err != nil {
					return err
				}
			}

			return interactiveLoop(ctx, components.Loop, logger)
		},
	}

	runCmd.Flags().Bool("headless", false, "run Chrome without a visible window")
	runCmd.Flags().String("cdp-endpoint", "", "attach to a running Chrome (ws:// or http:// DevTools URL)")
	runCmd.Flags().Int("max-iterations", 50, "inference-turn ceiling per task")

	return runCmd
}

// applyFlagOverrides copies flags the user set explicitly onto the loaded
// configuration, taking precedence over file and environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg config.Interface) error {
	flags := cmd.Flags()

	if flags.Changed("headless") {
		headless, err := flags.GetBool("headless")
		if err != nil {
			return err
		}
		cfg.SetBrowserHeadless(headless)
	}
	if flags.Changed("cdp-endpoint") {
		endpoint, err := flags.GetString("cdp-endpoint")
		if err != nil {
			return err
		}
		cfg.SetBrowserCDPEndpoint(endpoint)
	}
	if flags.Changed("max-iterations") {
		iterations, err := flags.GetInt("max-iterations")
		if err != nil {
			return err
		}
		cfg.SetAgentMaxIterations(iterations)
	}

	return nil
}

// initializeRunComponents builds the browser session, page engine, inference
// client, and conversation loop.
func initializeRunComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*runComponents, error) {
	components := &runComponents{}

	components.Manager = browser.NewManager(cfg, logger)
	session, err := components.Manager.NewSession(ctx)
	if err != nil {
		return components, fmt.Errorf("browser session: %w", err)
	}
	components.Session = session

	state := page.NewState(session)
	analyzer := page.NewAnalyzer(state, logger)
	scroller := page.NewScroller(session, logger)
	resolver := page.NewResolver(state, analyzer, scroller, logger)
	executor := page.NewExecutor(session, page.NewCursor(session, logger), logger)

	keyboard := agent.NewKeyboard(session, logger)
	prompter := agent.NewUserPrompter(os.Stdin, os.Stdout, logger)
	toolset := agent.NewBrowserToolset(session, analyzer, scroller, resolver, executor, keyboard, prompter, logger)
	registry := agent.NewRegistry(toolset.Tools()...)

	llm, err := llmclient.NewClient(cfg.Agent(), logger)
	if err != nil {
		return components, fmt.Errorf("inference client: %w", err)
	}

	memory := agent.NewSessionMemory(cfg.Memory(), logger)
	components.Loop = agent.NewExecutor(llm, registry, memory, cfg.Agent().MaxIterations, logger)

	return components, nil
}

func runTask(ctx context.Context, loop *agent.Executor, task string, logger *zap.Logger) error {
	logger.Info("Executing task", zap.String("task", task))
	start := time.Now()

	result, err := loop.Invoke(ctx, task)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		// Task failures are printed, not fatal; the session stays usable.
		fmt.Printf("Task failed: %v\n", err)
		return nil
	}

	logger.Info("Task finished",
		zap.Duration("duration", time.Since(start)),
		zap.Bool("exhausted", result.Exhausted),
	)

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("TASK RESULT:")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Println(result.Output)
	fmt.Println(strings.Repeat("=", 60))
	return nil
}

// interactiveLoop reads instructions from stdin until exit/quit or EOF.
func interactiveLoop(ctx context.Context, loop *agent.Executor, logger *zap.Logger) error {
	fmt.Println("Enter instructions for the browser agent ('exit' to quit).")
	scanner := bufio.NewScanner(os.Stdin)

	for n := 1; ; n++ {
		fmt.Printf("\n[%d] webpilot> ", n)
		if !scanner.Scan() {
			break // EOF (Ctrl+D)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			n--
			continue
		}
		if line == "exit" || line == "quit" || line == "q" {
			break
		}

		if err := runTask(ctx, loop, line, logger); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading from stdin: %w", err)
	}

	fmt.Println("Exiting webpilot-cli.")
	return nil
}
