package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/patternbench/patternbench/internal/patterns"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Browse the pattern library",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available patterns",
	Long:  "List the patterns found in the configured library directory.",
	RunE:  runPatternsList,
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a pattern's system prompt",
	Args:  cobra.ExactArgs(1),
	RunE:  runPatternsShow,
}

var (
	patternsQuery string
	patternsJSON  bool
)

func init() {
	rootCmd.AddCommand(patternsCmd)
	patternsCmd.AddCommand(patternsListCmd)
	patternsCmd.AddCommand(patternsShowCmd)

	patternsListCmd.Flags().StringVar(&patternsQuery, "q", "", "Fuzzy-filter patterns by name")
	patternsCmd.PersistentFlags().BoolVar(&patternsJSON, "json", false, "Output as JSON")
}

func runPatternsList(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := newPatternStore(cfg, newCLILogger(cfg))
	defer store.Close()

	var list []patterns.Pattern
	if patternsQuery != "" {
		list, err = store.Search(patternsQuery)
	} else {
		list, err = store.List()
	}
	if err != nil {
		return err
	}

	if patternsJSON {
		return outputJSON(list)
	}

	if len(list) == 0 {
		fmt.Printf("No patterns found under %s\n", cfg.Patterns.Dir)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCATEGORY\tTOKENS\tDESCRIPTION")
	fmt.Fprintln(w, "----\t--------\t------\t-----------")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			p.Name, p.Category, p.EstTokens, truncateCell(p.Description, 60))
	}
	w.Flush()

	return nil
}

func runPatternsShow(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store := newPatternStore(cfg, newCLILogger(cfg))
	defer store.Close()

	doc, err := store.Load(args[0])
	if err != nil {
		return err
	}

	if patternsJSON {
		return outputJSON(doc)
	}

	fmt.Print(doc.Content)
	if doc.Content != "" && doc.Content[len(doc.Content)-1] != '\n' {
		fmt.Println()
	}
	if doc.UserContent != "" {
		fmt.Println()
		fmt.Println("--- user addendum ---")
		fmt.Print(doc.UserContent)
		if doc.UserContent[len(doc.UserContent)-1] != '\n' {
			fmt.Println()
		}
	}

	return nil
}
