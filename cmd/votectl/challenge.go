package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/client"
	"github.com/vibeai/backend/internal/fingerprint"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge",
	Short: "Fetch challenges from the server",
}

var challengePowCmd = &cobra.Command{
	Use:   "pow",
	Short: "Fetch a proof-of-work puzzle",
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, _ := cmd.Flags().GetInt("tier")
		pow, err := client.New(apiURL).ProofOfWork(cmd.Context(), tier)
		if err != nil {
			return err
		}
		return printResult(pow, func() {
			fmt.Printf("challenge:  %s\nprefix:     %s\ndifficulty: %d\nexpires:    %s\n",
				pow.Challenge, pow.Prefix, pow.Difficulty, time.UnixMilli(pow.ExpiresAt).Format(time.RFC3339))
		})
	},
}

var challengeTimeCmd = &cobra.Command{
	Use:   "time",
	Short: "Fetch a time challenge token",
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := client.New(apiURL).TimeChallenge(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(tc, func() {
			fmt.Printf("token:   %s\nexpires: %s\n", tc.Token, time.UnixMilli(tc.ExpiresAt).Format(time.RFC3339))
		})
	},
}

var solveCmd = &cobra.Command{
	Use:   "solve <challenge> <prefix>",
	Short: "Solve a proof-of-work puzzle locally",
	Long: `Search decimal nonces until sha256(challenge+nonce) starts with prefix.

Examples:
  votectl solve "$(votectl challenge pow --output json | jq -r .challenge)" 0000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		maxAttempts, _ := cmd.Flags().GetInt("max-attempts")
		start := time.Now()
		solution, err := challenges.Solve(cmd.Context(), args[0], args[1], maxAttempts)
		if err != nil {
			return err
		}
		elapsed := time.Since(start)
		return printResult(map[string]interface{}{"solution": solution, "elapsedMs": elapsed.Milliseconds()}, func() {
			fmt.Printf("solution: %s (%s)\n", solution, elapsed.Round(time.Millisecond))
		})
	},
}

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the digest the server would compute for a device",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := client.New(apiURL).Device()
		if v, _ := cmd.Flags().GetString("user-agent"); v != "" {
			f.UserAgent = v
		}
		if v, _ := cmd.Flags().GetString("screen"); v != "" {
			f.ScreenResolution = v
		}
		if v, _ := cmd.Flags().GetString("timezone"); v != "" {
			f.Timezone = v
		}
		if v, _ := cmd.Flags().GetString("language"); v != "" {
			f.Language = v
		}
		if v, _ := cmd.Flags().GetString("platform"); v != "" {
			f.Platform = v
		}
		if err := f.Validate(); err != nil {
			return err
		}
		digest := fingerprint.Generate(f)
		return printResult(map[string]interface{}{"fingerprint": f, "hash": digest}, func() {
			fmt.Println(digest)
		})
	},
}

func init() {
	challengePowCmd.Flags().Int("tier", 0, "Difficulty tier")
	challengeCmd.AddCommand(challengePowCmd, challengeTimeCmd)

	solveCmd.Flags().Int("max-attempts", client.DefaultMaxAttempts, "Give up after this many nonces")

	fingerprintCmd.Flags().String("user-agent", "", "User agent")
	fingerprintCmd.Flags().String("screen", "", "Screen resolution, e.g. 1920x1080")
	fingerprintCmd.Flags().String("timezone", "", "IANA timezone")
	fingerprintCmd.Flags().String("language", "", "Language tag")
	fingerprintCmd.Flags().String("platform", "", "Platform string")
}
