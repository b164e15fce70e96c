package main

import (
	"github.com/spf13/cobra"
)

var inspectLimit int

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect model versions and the current model of a project",
	Long: `Inspect a project.

Subcommands:
  versions  - Version history, newest first
  items     - Items known to the current model
  users     - Users known to the current model`,
}

var inspectVersionsCmd = &cobra.Command{
	Use:   "versions PROJECT",
	Short: "List model versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		versions, err := rt.Registry.Versions(cmd.Context(), args[0], inspectLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), versions)
	},
}

var inspectItemsCmd = &cobra.Command{
	Use:   "items PROJECT",
	Short: "List items of the current model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := rt.Server.Items(cmd.Context(), args[0], inspectLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), items)
	},
}

var inspectUsersCmd = &cobra.Command{
	Use:   "users PROJECT",
	Short: "List users of the current model",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := rt.Server.Users(cmd.Context(), args[0], inspectLimit)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), users)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectVersionsCmd, inspectItemsCmd, inspectUsersCmd)

	inspectCmd.PersistentFlags().IntVarP(&inspectLimit, "limit", "l", 0, "Maximum entries (0 uses the default)")
}
