package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/patternbench/patternbench/internal/config"
	"github.com/patternbench/patternbench/internal/health"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/patterns"
	"github.com/patternbench/patternbench/internal/providers"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the panel's dependencies",
	Long:  "Verify the external CLI, pattern library, vendor keys, and configuration.",
	RunE:  runDoctor,
}

var doctorYAML bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorYAML, "yaml", false, "Append the effective configuration as YAML")
}

func runDoctor(_ *cobra.Command, _ []string) error {
	// Load without failing on validation: doctor reports problems, it does
	// not stop at the first one.
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var configIssues []string
	if verr := config.ValidateConfig(cfg); verr != nil {
		if verrs, ok := verr.(config.ValidationErrors); ok {
			for _, v := range verrs {
				configIssues = append(configIssues, v.Error())
			}
		} else {
			configIssues = append(configIssues, verr.Error())
		}
	}

	// Doctor prints its own report; component logs would only interleave.
	logger := logging.NewNop()

	checker := health.NewChecker(cfg.Runner.Executable, logger)
	snap := checker.Check(context.Background())

	fmt.Println("Checking external CLI...")
	fmt.Println()
	switch {
	case snap.ExecutableAvailable && snap.Version != "":
		fmt.Printf("  ✓ %s (%s) at %s\n", cfg.Runner.Executable, snap.Version, snap.ExecutablePath)
	case snap.ExecutableAvailable:
		fmt.Printf("  ✓ %s at %s\n", cfg.Runner.Executable, snap.ExecutablePath)
	default:
		fmt.Printf("  ✗ %s not found on PATH\n", cfg.Runner.Executable)
	}
	fmt.Println()

	fmt.Println("Checking pattern library...")
	fmt.Println()
	library := patterns.New(patterns.Options{Root: cfg.Patterns.Dir, Logger: logger})
	defer library.Close()
	list, listErr := library.List()
	switch {
	case listErr != nil:
		fmt.Printf("  ✗ %s: %v\n", cfg.Patterns.Dir, listErr)
	case len(list) == 0:
		fmt.Printf("  ○ no patterns under %s\n", cfg.Patterns.Dir)
	default:
		fmt.Printf("  ✓ %d patterns under %s\n", len(list), cfg.Patterns.Dir)
	}
	fmt.Println()

	fmt.Println("Checking vendors...")
	fmt.Println()
	catalog := providers.New(providers.Options{ExecutablePath: cfg.Runner.Executable, Logger: logger})
	for _, vs := range catalog.LoadVendors() {
		switch {
		case vs.KeyVar == "":
			fmt.Printf("  ✓ %s (no key required)\n", vs.Name)
		case vs.HasKey:
			fmt.Printf("  ✓ %s (%s set)\n", vs.Name, vs.KeyVar)
		default:
			fmt.Printf("  ○ %s (%s not set)\n", vs.Name, vs.KeyVar)
		}
	}
	fmt.Println()

	fmt.Println("Validating configuration...")
	fmt.Println()
	if len(configIssues) > 0 {
		for _, issue := range configIssues {
			fmt.Printf("  ✗ %s\n", issue)
		}
		fmt.Println()
		fmt.Println("Fix the issues above before serving.")
	} else {
		fmt.Println("  ✓ configuration valid")
	}
	fmt.Println()

	fmt.Printf("System: load %.2f, cpu %.1f%%, mem %.1f%% of %d MB\n",
		snap.Load1, snap.CPUPercent, snap.MemPercent, int(snap.MemTotalMB))

	if doctorYAML {
		out, yerr := config.ExportYAML(cfg)
		if yerr != nil {
			return yerr
		}
		fmt.Println()
		fmt.Println("Effective configuration:")
		fmt.Println()
		fmt.Print(string(out))
	}

	if !snap.ExecutableAvailable || len(configIssues) > 0 {
		return fmt.Errorf("dependency check failed")
	}

	return nil
}
