package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/wikilink-dev/wikilinkd/domain"
	"github.com/wikilink-dev/wikilinkd/mongodb"
)

var communityCmd = &cobra.Command{
	Use:     "community",
	Short:   "Manage per-community onboarding configuration",
	Aliases: []string{"communities"},
}

var communityGetCmd = &cobra.Command{
	Use:   "get <community-id>",
	Short: "Show a community's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *mongodb.Store) error {
			cfg, err := store.CommunityConfig(ctx, args[0])
			if err != nil {
				return err
			}
			return yaml.NewEncoder(os.Stdout).Encode(cfg)
		})
	},
}

var communitySetCmd = &cobra.Command{
	Use:   "set <community-id>",
	Short: "Create or update a community's configuration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		welcomeChannel, _ := cmd.Flags().GetString("welcome-channel")
		roleID, _ := cmd.Flags().GetString("role")
		locale, _ := cmd.Flags().GetString("locale")

		if welcomeChannel == "" {
			return errors.New("--welcome-channel is required")
		}

		return withStore(func(ctx context.Context, store *mongodb.Store) error {
			cfg := &domain.CommunityConfig{
				CommunityID:    args[0],
				WelcomeChannel: welcomeChannel,
				RoleID:         roleID,
				Locale:         locale,
			}
			if err := store.SetCommunityConfig(ctx, cfg); err != nil {
				return err
			}
			fmt.Printf("community %s configured\n", args[0])
			return nil
		})
	},
}

func init() {
	communitySetCmd.Flags().String("welcome-channel", "", "channel id for welcome messages")
	communitySetCmd.Flags().String("role", "", "role id granted to authenticated members")
	communitySetCmd.Flags().String("locale", "en", "message locale")

	communityCmd.AddCommand(communityGetCmd)
	communityCmd.AddCommand(communitySetCmd)
}
