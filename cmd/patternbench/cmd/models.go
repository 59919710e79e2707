package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models reported by the external CLI",
	Long: `Query the external CLI for its model catalog. The listing reflects which
vendors are configured on this machine; an unreachable local runtime like
Ollama simply contributes no models.`,
	RunE: runModels,
}

var (
	modelsVendor string
	modelsJSON   bool
)

func init() {
	rootCmd.AddCommand(modelsCmd)

	modelsCmd.Flags().StringVar(&modelsVendor, "vendor", "", "Only models from this vendor")
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "Output as JSON")
}

func runModels(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	catalog := newProviderService(cfg, newCLILogger(cfg))
	models, err := catalog.ListModels(context.Background(), modelsVendor)
	if err != nil {
		return err
	}

	if modelsJSON {
		return outputJSON(models)
	}

	if len(models) == 0 {
		fmt.Println("No models reported. Is a vendor configured for the external CLI?")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tMODEL\tCONTEXT")
	fmt.Fprintln(w, "------\t-----\t-------")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%d\n", m.Vendor, m.Name, m.ContextLength)
	}
	w.Flush()

	return nil
}
