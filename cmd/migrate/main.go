package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vibeai/backend/internal/database"
	"github.com/vibeai/backend/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the vote ledger schema",
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
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = database.Close()
		_ = logger.Close()
	},
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Create or update the likes and vote event tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := database.Migrate(); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		logger.Infof("✅ All migrations completed successfully (driver %s)", database.DB.Dialector.Name())
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Drop the likes and vote event tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		if confirm, _ := cmd.Flags().GetBool("yes"); !confirm {
			return fmt.Errorf("refusing to drop tables without --yes")
		}
		if err := database.Rollback(database.DB); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		logger.Infof("✅ Tables dropped")
		return nil
	},
}

func init() {
	downCmd.Flags().Bool("yes", false, "Confirm dropping all vote data")
	rootCmd.AddCommand(upCmd, downCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
