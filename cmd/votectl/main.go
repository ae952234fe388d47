package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiURL    = "http://localhost:8787"
	authToken string
	output    = "text" // "text" or "json"
)

var rootCmd = &cobra.Command{
	Use:   "votectl",
	Short: "votectl - exercise the anonymous vote API from the command line",
	Long: `votectl submits likes as an anonymous session, solving proof-of-work
demands locally, and can fetch or solve challenges for debugging.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", apiURL, "API server URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", "", "Bearer token (defaults to VOTE_TOKEN env var)")
	rootCmd.PersistentFlags().StringVar(&output, "output", output, "Output format: text or json")

	rootCmd.AddCommand(voteCmd, challengeCmd, solveCmd, fingerprintCmd)
}

func token() string {
	if authToken != "" {
		return authToken
	}
	return os.Getenv("VOTE_TOKEN")
}

// printResult writes v as JSON or hands it to text for human output
func printResult(v interface{}, text func()) error {
	if output == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
