package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Inspect MCP providers",
}

var mcpStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the connection state of each configured provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		status := a.mcp.ProviderStatus()
		if len(status) == 0 {
			fmt.Println("no providers configured (set tools.mcp.providers)")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PROVIDER\tCONNECTED\tTOOLS\tERROR")
		for _, s := range status {
			fmt.Fprintf(w, "%s\t%t\t%d\t%s\n", s.URL, s.Connected, s.ToolCount, s.Error)
		}
		return w.Flush()
	},
}

var mcpRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reconnect providers and reload their tool manifests",
	RunE: func(cmd *cobra.Command, args []string) error {
		// buildApp already refreshes when tools.mcp.enabled is on; this
		// command exists to force a refresh and report what it found.
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		tools := a.mcp.Tools()
		fmt.Printf("%d providers, %d tools\n", len(a.mcp.ProviderStatus()), len(tools))
		for _, t := range tools {
			fmt.Printf("  %s (%s)\n", t.Name, t.Provider)
		}
		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpStatusCmd)
	mcpCmd.AddCommand(mcpRefreshCmd)
}
