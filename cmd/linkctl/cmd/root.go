// Package cmd implements the linkctl operator CLI. It talks to the shared
// MongoDB storage directly: community configuration and explicit unlinks
// are operator actions, outside the linking core's own write paths.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wikilink-dev/wikilinkd/config"
	"github.com/wikilink-dev/wikilinkd/mongodb"
)

var rootCmd = &cobra.Command{
	Use:           "linkctl",
	Short:         "Operator tooling for the wikilinkd link store",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(communityCmd)
	rootCmd.AddCommand(linkCmd)
}

// withStore connects to MongoDB, runs fn, and disconnects.
func withStore(fn func(ctx context.Context, store *mongodb.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func(c *mongo.Client) {
		disconnectCtx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		_ = c.Disconnect(disconnectCtx)
	}(client)

	store, err := mongodb.NewStore(ctx, db)
	if err != nil {
		return err
	}
	return fn(ctx, store)
}
