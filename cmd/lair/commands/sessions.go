package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lair-ai/lair/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		summaries, err := a.manager.List()
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("no sessions")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tALIAS\tMODEL\tMESSAGES\tTITLE")
		for _, s := range summaries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", s.ID, s.Alias, s.ModelName, s.Messages, s.Title)
		}
		return w.Flush()
	},
}

var sessionsRmCmd = &cobra.Command{
	Use:   "rm <ref>...",
	Short: "Delete sessions by id or alias",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		for _, ref := range args {
			if err := a.manager.Delete(ref); err != nil {
				return err
			}
			fmt.Printf("deleted %s\n", ref)
		}
		return nil
	},
}

var sessionsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.manager.DeleteAll()
	},
}

var sessionsAliasCmd = &cobra.Command{
	Use:   "alias <ref> <alias>",
	Short: "Set or clear a session alias",
	Long: `Points the alias at the session. An empty alias ("") clears the session's
current alias. Numeric aliases are rejected because they would shadow ids.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.manager.SetAlias(args[0], args[1])
	},
}

var sessionsTitleCmd = &cobra.Command{
	Use:   "title <ref> <title>",
	Short: "Set a session title",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.manager.SetTitle(args[0], args[1])
	},
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export <ref> <file>",
	Short: "Export a session to a JSON file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()
		return a.manager.ExportFile(args[0], args[1])
	},
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a session from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		id, err := a.manager.ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("imported as session %d\n", id)
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Print a session's history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.close()

		sess, err := a.manager.Resolve(args[0], session.ResolveOptions{ReadOnly: true})
		if err != nil {
			return err
		}
		for _, msg := range sess.History() {
			fmt.Printf("[%s] %s\n", msg.Role, msg.Content)
		}
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsRmCmd)
	sessionsCmd.AddCommand(sessionsClearCmd)
	sessionsCmd.AddCommand(sessionsAliasCmd)
	sessionsCmd.AddCommand(sessionsTitleCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
}
