package commands

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lair-ai/lair/internal/tool"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect the tool registry",
}

var toolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered tools and whether they are enabled",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		names := a.registry.Names()
		sort.Strings(names)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCATEGORY\tENABLED")
		for _, name := range names {
			t, ok := a.registry.Get(name)
			if !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%t\n", t.Name(), t.Category(), tool.Enabled(a.settings, t))
		}
		return w.Flush()
	},
}

func init() {
	toolsCmd.AddCommand(toolsListCmd)
}
