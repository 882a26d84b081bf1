package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gateprov/gateprov/internal/registry"
)

func newInstancesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List registered remote instances",
		Example: `  # List instances from the default registry
  gateprov instances

  # List from a specific registry file
  gateprov instances -r /etc/gateprov/instances.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.NewManager(registryPath)
			if err != nil {
				return err
			}
			instances := reg.List()

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(instances)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBASE URL\tACTIVE")
			for _, inst := range instances {
				fmt.Fprintf(w, "%s\t%s\t%s\t%v\n",
					inst.ID, inst.Name, inst.BaseURL, inst.Active)
			}
			return w.Flush()
		},
	}

	return cmd
}
