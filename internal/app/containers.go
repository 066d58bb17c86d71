package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/cubby/internal/output"
)

var containersCmd = &cobra.Command{
	Use:   "containers [id]",
	Short: "List containers and their suffix rules",
	Long: `Without arguments, lists every container with its rule count and
status. With a container id, shows that container's rules in order.`,
	Example: `  # List all containers
  cubby containers

  # Show one container's rules
  cubby containers cubby-2f1c`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContainers,
}

func runContainers(cmd *cobra.Command, args []string) error {
	path, err := getDBPath()
	if err != nil {
		return err
	}
	eng, err := openEngine(path)
	if err != nil {
		return err
	}
	defer eng.close()

	if len(args) == 1 {
		c, err := eng.reg.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s (%s, %s icon) [%s]\n\n", c.Name, c.Color, c.Icon, c.ID)
		fmt.Print(output.RenderRuleTable(c))
		return nil
	}

	// The CLI never serves the host loop, so no session is active.
	fmt.Print(output.RenderContainerTable(eng.reg.List(), eng.rec.Active))
	return nil
}
