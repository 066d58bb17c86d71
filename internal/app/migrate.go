package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cubby/internal/output"
	"github.com/blackwell-systems/cubby/internal/registry"
)

var (
	migrateDetectTemp bool

	migrateCmd = &cobra.Command{
		Use:   "migrate <identities.json>",
		Short: "Import containers exported from another extension",
		Long: `Migrate bulk-imports a JSON enumeration of contextual identities.
Each item succeeds or is rejected on its own; a malformed rule or a
rule already owned by an existing container rejects only that item.

With --detect-temp, identities named "Temporary Container ..." are
imported as temporary containers.`,
		Example: `  cubby migrate identities.json
  cubby migrate identities.json --detect-temp`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrate,
	}
)

func init() {
	migrateCmd.Flags().BoolVar(&migrateDetectTemp, "detect-temp", false,
		"mark generated temporary-container names as temporary")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	var items []registry.MigrationItem
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to parse %s: %w", args[0], err)
	}

	path, err := getDBPath()
	if err != nil {
		return err
	}
	eng, err := openEngine(path)
	if err != nil {
		return err
	}
	defer eng.close()

	progress := output.NewProgress(len(items), "Importing containers")
	var report registry.MigrationReport
	for _, item := range items {
		r := eng.reg.Migrate([]registry.MigrationItem{item}, migrateDetectTemp)
		report.Imported += r.Imported
		report.Rejected += r.Rejected
		report.Failures = append(report.Failures, r.Failures...)
		progress.Increment()
	}
	progress.Finish()

	fmt.Print(output.RenderMigrationReport(report))
	return nil
}
