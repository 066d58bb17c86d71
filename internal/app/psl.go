package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cubby/internal/output"
	"github.com/blackwell-systems/cubby/internal/psl"
)

var (
	pslUpdateURL string

	pslCmd = &cobra.Command{
		Use:   "psl",
		Short: "Inspect and refresh the public suffix list",
		Long: `The public suffix list defines domain boundaries for suffix
matching. A snapshot ships with the binary; 'psl update' fetches the
current list and records the refresh.`,
	}

	pslStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the suffix table's entry count and age",
		RunE:  runPslStatus,
	}

	pslUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "Fetch a fresh public suffix list",
		Example: `  # Fetch from publicsuffix.org
  cubby psl update

  # Fetch from a mirror
  cubby psl update --url https://mirror.example/public_suffix_list.dat`,
		RunE: runPslUpdate,
	}
)

func init() {
	pslUpdateCmd.Flags().StringVar(&pslUpdateURL, "url", "", "list URL (default: publicsuffix.org)")
	pslCmd.AddCommand(pslStatusCmd)
	pslCmd.AddCommand(pslUpdateCmd)
}

func runPslStatus(cmd *cobra.Command, args []string) error {
	path, err := getDBPath()
	if err != nil {
		return err
	}
	eng, err := openEngine(path)
	if err != nil {
		return err
	}
	defer eng.close()

	meta, err := eng.st.GetPSLMeta()
	if err != nil {
		return err
	}
	if meta == nil {
		// openEngine stamps the bundled snapshot, so this is unreachable
		// unless the row was deleted out from under us.
		table := eng.resolver.Snapshot()
		fmt.Print(output.RenderPSLStatus(table.Len(), table.Updated(), "bundled"))
		return nil
	}
	fmt.Print(output.RenderPSLStatus(meta.EntryCount, meta.LastUpdated, meta.Source))
	return nil
}

func runPslUpdate(cmd *cobra.Command, args []string) error {
	path, err := getDBPath()
	if err != nil {
		return err
	}
	eng, err := openEngine(path)
	if err != nil {
		return err
	}
	defer eng.close()

	url := pslUpdateURL
	if url == "" {
		url = psl.DefaultListURL
	}

	spinner := output.NewSpinner("Fetching public suffix list")
	spinner.Start()
	updated, err := eng.resolver.Refresh(cmd.Context(), url)
	if err != nil {
		spinner.StopWithMessage("Fetch failed")
		return err
	}
	spinner.StopWithMessage("List updated")

	if err := eng.recordRefresh(updated, url); err != nil {
		return err
	}
	table := eng.resolver.Snapshot()
	fmt.Print(output.RenderPSLStatus(table.Len(), updated, url))
	return nil
}
