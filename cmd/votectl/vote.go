package main

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/client"
)

var voteCmd = &cobra.Command{
	Use:   "vote <postId>",
	Short: "Toggle a like on a post",
	Long: `Toggle a like as an anonymous session. Proof-of-work demands are
solved locally and the vote is resubmitted.

Examples:
  votectl vote 3f2c...
  votectl vote 3f2c... --session anon_1700000000000_abc123xyz --time-challenge
  votectl vote 3f2c... --captcha-token <hcaptcha response>`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, _ := cmd.Flags().GetString("session")
		captchaToken, _ := cmd.Flags().GetString("captcha-token")
		useTime, _ := cmd.Flags().GetBool("time-challenge")
		simulate, _ := cmd.Flags().GetBool("simulate-human")
		maxAttempts, _ := cmd.Flags().GetInt("max-attempts")

		opts := []client.Option{client.WithMaxAttempts(maxAttempts)}
		if session != "" {
			opts = append(opts, client.WithSessionID(session))
		}
		if t := token(); t != "" {
			opts = append(opts, client.WithToken(t))
		}
		c := client.New(apiURL, opts...)
		ctx := cmd.Context()

		var voteOpts client.VoteOptions
		voteOpts.CaptchaToken = captchaToken
		if useTime {
			tc, err := c.TimeChallenge(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch time challenge: %w", err)
			}
			voteOpts.TimeChallenge = tc.Token
		}

		if simulate {
			simulateBrowsing(c, time.Now())
		}

		// a real reader dwells before liking; the time challenge requires it
		if useTime {
			wait, _ := cmd.Flags().GetDuration("dwell")
			time.Sleep(wait)
		}

		res, err := c.Vote(ctx, args[0], voteOpts)
		if errors.Is(err, client.ErrCaptchaRequired) {
			return fmt.Errorf("%w: rerun with --captcha-token", err)
		}
		if err != nil {
			return err
		}

		return printResult(map[string]interface{}{"sessionId": c.SessionID(), "result": res}, func() {
			state := "unliked"
			if res.Liked {
				state = "liked"
			}
			fmt.Printf("✅ %s %s as %s\n", state, args[0], c.SessionID())
			if res.RateLimit != nil {
				fmt.Printf("   remaining: %d, resets %s\n", res.RateLimit.Remaining,
					time.UnixMilli(res.RateLimit.ResetTime).Format(time.RFC3339))
			}
		})
	},
}

// simulateBrowsing records a varied, irregular interaction history
func simulateBrowsing(c *client.Client, end time.Time) {
	kinds := []string{behavior.ActionMouseMove, behavior.ActionScroll, behavior.ActionMouseMove, behavior.ActionKeyDown}
	at := end.Add(-time.Minute)
	for i := 0; i < 15; i++ {
		at = at.Add(time.Duration(300+rand.IntN(2500)) * time.Millisecond)
		c.Record(kinds[rand.IntN(len(kinds))], at)
	}
	c.Record(behavior.ActionClickLike, end)
}

func init() {
	voteCmd.Flags().String("session", "", "Reuse a session id instead of minting anon_<ms>_<rand>")
	voteCmd.Flags().String("captcha-token", "", "CAPTCHA response token")
	voteCmd.Flags().Bool("time-challenge", false, "Fetch and answer a time challenge")
	voteCmd.Flags().Duration("dwell", 2500*time.Millisecond, "Wait between fetching the time challenge and voting")
	voteCmd.Flags().Bool("simulate-human", true, "Send a human-looking action log")
	voteCmd.Flags().Int("max-attempts", client.DefaultMaxAttempts, "Proof-of-work search ceiling")
}
