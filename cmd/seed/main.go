package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vibeai/backend/internal/database"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/seed"
)

var (
	randSeed uint64
	seeder   *seed.Seeder
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the vote ledger with synthetic traffic",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: .env file not found, using system environment variables")
		}
		if err := logger.Initialize(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FILE")); err != nil {
			return err
		}
		if err := database.Initialize(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		seeder = seed.NewSeeder(database.DB, os.Getenv("IP_HASH_SALT"), randSeed)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = database.Close()
		_ = logger.Close()
	},
}

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Create organic likes across many posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		posts, _ := cmd.Flags().GetInt("posts")
		visitors, _ := cmd.Flags().GetInt("visitors")
		if err := seeder.SeedDev(cmd.Context(), posts, visitors); err != nil {
			return err
		}
		logger.Infof("🌱 Seeded %d posts with %d visitors", posts, visitors)
		return nil
	},
}

var burstCmd = &cobra.Command{
	Use:   "burst",
	Short: "Create a coordinated burst on one post",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, _ := cmd.Flags().GetInt("sessions")
		addresses, _ := cmd.Flags().GetInt("addresses")
		postID, err := seeder.SeedBurst(cmd.Context(), sessions, addresses)
		if err != nil {
			return err
		}
		fmt.Println(postID)
		return nil
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove all likes and vote events (use with caution)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := seeder.Clean(cmd.Context()); err != nil {
			return err
		}
		logger.Infof("🧹 Removed all likes and vote events")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().Uint64Var(&randSeed, "seed", 0, "Random seed (0 picks one)")
	devCmd.Flags().Int("posts", 50, "Number of posts")
	devCmd.Flags().Int("visitors", 300, "Number of simulated visitors")
	burstCmd.Flags().Int("sessions", 80, "Sessions voting in the burst")
	burstCmd.Flags().Int("addresses", 3, "Distinct addresses behind the burst")
	rootCmd.AddCommand(devCmd, burstCmd, cleanCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
