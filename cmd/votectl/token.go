package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibeai/backend/internal/auth"
)

var tokenCmd = &cobra.Command{
	Use:   "token <principalId>",
	Short: "Sign a development bearer token",
	Long: `Sign a bearer token with JWT_SECRET so an authenticated vote can be
tried locally. The principal replaces the anonymous session on the server.

Examples:
  export VOTE_TOKEN=$(JWT_SECRET=dev votectl token user-42)
  votectl vote 3f2c...`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		signed, err := auth.NewTokenValidator([]byte(os.Getenv("JWT_SECRET"))).IssueToken(args[0], ttl)
		if err != nil {
			return fmt.Errorf("%w: set JWT_SECRET", err)
		}
		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
