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

	"github.com/patternbench/patternbench/internal/config"
	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/outputs"
	"github.com/patternbench/patternbench/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <pattern>",
	Short: "Run a pattern against input text",
	Long: `Execute a single pattern through the external CLI and print its output.
Input is taken from --input, --file, or piped stdin, in that order.

Examples:
  # Summarize a file
  patternbench run summarize -f notes.txt

  # Pipe input and pick a model
  cat article.md | patternbench run extract_wisdom --vendor openai --model gpt-4o`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runInput   string
	runFile    string
	runVendor  string
	runModel   string
	runTimeout time.Duration
	runSave    bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Input text (overrides --file and stdin)")
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read input from file")
	runCmd.Flags().StringVar(&runVendor, "vendor", "", "Model vendor (combined with --model)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model name")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Wall clock limit (default from config)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "Persist the output to the output log")
}

func runRun(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newCLILogger(cfg)

	input, err := resolveInput(runInput, runFile)
	if err != nil {
		return err
	}

	vendor, model := runVendor, runModel
	if vendor == "" && model == "" {
		vendor, model = cfg.Defaults.Vendor, cfg.Defaults.Model
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := newRunner(cfg, logger).Run(ctx, runner.Request{
		Pattern: args[0],
		Input:   input,
		Vendor:  vendor,
		Model:   model,
		Timeout: runTimeout,
	})
	if err != nil {
		return err
	}

	if !result.Success {
		if result.Error != "" {
			fmt.Fprintln(os.Stderr, result.Error)
		}
		return fmt.Errorf("pattern %s failed (%s)", args[0], result.TerminalStatus())
	}

	fmt.Print(result.Output)
	if result.Output != "" && !strings.HasSuffix(result.Output, "\n") {
		fmt.Println()
	}
	if result.Flag(core.MetaTruncated) && !quiet {
		fmt.Fprintln(os.Stderr, "note: output truncated at the configured byte limit")
	}

	if runSave {
		if saveErr := saveRunOutput(cfg, logger, args[0], input, result.Output); saveErr != nil {
			logger.Warn("saving output failed", "error", saveErr.Error())
		}
	}

	return nil
}

// saveRunOutput persists a successful run into the output log. Used by run
// and chain when --save is set.
func saveRunOutput(cfg *config.Config, logger *logging.Logger, pattern, input, output string) error {
	store, err := newOutputStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	saved, err := store.Append(context.Background(), outputs.OutputLog{
		Pattern:    pattern,
		InputText:  input,
		OutputText: output,
	})
	if err != nil {
		return err
	}
	if !quiet {
		fmt.Fprintf(os.Stderr, "saved output %s\n", saved.ID)
	}
	return nil
}
