package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/patternbench/patternbench/internal/runner"
)

var chainCmd = &cobra.Command{
	Use:   "chain <pattern> [pattern...]",
	Short: "Pipe input through a sequence of patterns",
	Long: `Run several patterns in order, feeding each stage's output to the next.
The seed input comes from --input, --file, or piped stdin.

An invalid stage name aborts the whole chain before that stage runs. A
stage that launches but fails stops the chain unless --continue-on-error
is set, in which case later stages reuse the last successful output.

Examples:
  cat paper.md | patternbench chain extract_wisdom summarize
  patternbench chain analyze_claims rate_content -f report.txt --continue-on-error`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChainCmd,
}

var (
	chainInput    string
	chainFile     string
	chainVendor   string
	chainModel    string
	chainTimeout  time.Duration
	chainContinue bool
	chainSave     bool
)

func init() {
	rootCmd.AddCommand(chainCmd)

	chainCmd.Flags().StringVarP(&chainInput, "input", "i", "", "Seed input text (overrides --file and stdin)")
	chainCmd.Flags().StringVarP(&chainFile, "file", "f", "", "Read seed input from file")
	chainCmd.Flags().StringVar(&chainVendor, "vendor", "", "Model vendor (combined with --model)")
	chainCmd.Flags().StringVar(&chainModel, "model", "", "Model name")
	chainCmd.Flags().DurationVar(&chainTimeout, "timeout", 0, "Wall clock limit per stage (default from config)")
	chainCmd.Flags().BoolVar(&chainContinue, "continue-on-error", false, "Keep going past failing stages")
	chainCmd.Flags().BoolVar(&chainSave, "save", false, "Persist the final output to the output log")
}

func runChainCmd(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newCLILogger(cfg)

	input, err := resolveInput(chainInput, chainFile)
	if err != nil {
		return err
	}

	vendor, model := chainVendor, chainModel
	if vendor == "" && model == "" {
		vendor, model = cfg.Defaults.Vendor, cfg.Defaults.Model
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	steps, err := newRunner(cfg, logger).RunChain(ctx, runner.ChainRequest{
		Patterns:        args,
		Input:           input,
		Vendor:          vendor,
		Model:           model,
		Timeout:         chainTimeout,
		ContinueOnError: chainContinue,
	})

	if !quiet {
		for i, step := range steps {
			status := "ok"
			if step.Error != "" {
				status = "failed"
			}
			fmt.Fprintf(os.Stderr, "[%d/%d] %s %s (%s)\n",
				i+1, len(args), step.Pattern, status,
				time.Duration(step.DurationMS)*time.Millisecond)
		}
	}
	if err != nil {
		return err
	}

	var failed []string
	final := ""
	for _, step := range steps {
		if step.Error != "" {
			failed = append(failed, step.Pattern)
			continue
		}
		final = step.Output
	}

	if len(failed) > 0 && !chainContinue {
		return fmt.Errorf("chain stopped: %s failed", failed[0])
	}
	if final == "" && len(failed) > 0 {
		return fmt.Errorf("chain produced no output: %s failed", strings.Join(failed, ", "))
	}

	fmt.Print(final)
	if final != "" && !strings.HasSuffix(final, "\n") {
		fmt.Println()
	}

	if chainSave && final != "" {
		if saveErr := saveRunOutput(cfg, logger, strings.Join(args, ","), input, final); saveErr != nil {
			logger.Warn("saving output failed", "error", saveErr.Error())
		}
	}

	if len(failed) > 0 && !quiet {
		fmt.Fprintf(os.Stderr, "skipped failing stages: %s\n", strings.Join(failed, ", "))
	}

	return nil
}
