package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wikilink-dev/wikilinkd/mongodb"
)

var linkCmd = &cobra.Command{
	Use:     "link",
	Short:   "Inspect and remove committed account links",
	Aliases: []string{"links"},
}

var linkGetCmd = &cobra.Command{
	Use:   "get <chat-user-id>",
	Short: "Show a chat user's committed link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *mongodb.Store) error {
			link, err := store.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(link)
		})
	},
}

var linkUnlinkCmd = &cobra.Command{
	Use:   "unlink <chat-user-id>",
	Short: "Remove a chat user's committed link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirmed, _ := cmd.Flags().GetBool("yes")
		if !confirmed {
			return fmt.Errorf("unlink is irreversible; re-run with --yes to confirm")
		}
		return withStore(func(ctx context.Context, store *mongodb.Store) error {
			if err := store.Unlink(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("unlinked %s\n", args[0])
			return nil
		})
	},
}

func init() {
	linkUnlinkCmd.Flags().Bool("yes", false, "confirm removal")

	linkCmd.AddCommand(linkGetCmd)
	linkCmd.AddCommand(linkUnlinkCmd)
}
