// Command migrate applies the Postgres schema standalone, adapted from
// the teacher's tinode-db seeding tool but narrowed to just the schema
// step (seed data generation does not carry over to this domain).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/relaywire/chat/internal/config"
	"github.com/relaywire/chat/internal/store/postgres"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "chatcore-migrate",
		Short: "Apply pending Postgres migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context())
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("migrate: load config: %w", err)
	}

	st := postgres.New(cfg.PostgresDSN)
	// Open runs the embedded migration set to completion before returning.
	if err := st.Open(ctx); err != nil {
		return fmt.Errorf("migrate: apply: %w", err)
	}
	defer st.Close()

	fmt.Println("migrations applied")
	return nil
}
