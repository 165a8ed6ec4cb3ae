package app

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stelliform/plughost/internal/config"
	"github.com/stelliform/plughost/internal/store"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List components from the persisted registry cache",
	Long: `List the components recorded in the persisted registry cache.

The cache is written by a running daemon on shutdown; this command reads
it without starting the host.`,
	RunE: runComponents,
}

func init() {
	componentsCmd.Flags().String("data-dir", config.DefaultDataDir, "Data directory holding the component cache")
	componentsCmd.Flags().String("format", "table", "Output format (table|json)")
}

func runComponents(cmd *cobra.Command, _ []string) error {
	dataDir, err := cmd.Flags().GetString("data-dir")
	if err != nil {
		return fmt.Errorf("failed to read data-dir flag: %w", err)
	}
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to read format flag: %w", err)
	}

	snap, err := store.NewFileStore(dataDir).Load(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load component cache: %w", err)
	}
	if snap == nil {
		fmt.Println("No component cache found; run the daemon to populate it.")
		return nil
	}

	switch format {
	case "json":
		output, err := json.MarshalIndent(snap.Components, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format components as JSON: %w", err)
		}
		fmt.Println(string(output))
	case "table":
		table := tablewriter.NewTable(os.Stdout)
		table.Header("ID", "POINT", "TYPE", "MODULE", "VERSION", "TAGS")
		for _, rec := range snap.Components {
			if err := table.Append([]string{
				rec.ID,
				rec.Point,
				rec.Type,
				strconv.FormatInt(rec.ModuleID, 10),
				rec.Version,
				strings.Join(rec.Tags, ","),
			}); err != nil {
				return fmt.Errorf("failed to build components table: %w", err)
			}
		}
		if err := table.Render(); err != nil {
			return fmt.Errorf("failed to render components table: %w", err)
		}
		fmt.Printf("\n%d components\n", len(snap.Components))
	default:
		return fmt.Errorf("unknown format %q", format)
	}

	return nil
}
