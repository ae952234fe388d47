// Package client is a Go client for the vote API. It tracks a session,
// records interactions and answers proof-of-work demands by itself.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/fingerprint"
	"github.com/vibeai/backend/internal/telemetry"
	"github.com/vibeai/backend/internal/voting"
)

// ActionsSent is how many of the newest interactions accompany a vote
const ActionsSent = 20

// DefaultMaxAttempts is the proof-of-work ceiling the server sizes its
// puzzles for
var DefaultMaxAttempts = config.DefaultPolicy().ProofOfWork.MaxAttempts

const maxResponseBytes = 1 << 20

// ErrCaptchaRequired means the server wants a CAPTCHA token the client does not have
var ErrCaptchaRequired = errors.New("captcha required")

// APIError is a refused vote
type APIError struct {
	Status int
	Body   voting.ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Body.Error)
}

// Client talks to one vote server on behalf of one session
type Client struct {
	baseURL     string
	http        *http.Client
	token       string
	sessionID   string
	device      fingerprint.DeviceFingerprint
	actions     *behavior.ActionLog
	maxAttempts int
}

// Option configures a Client
type Option func(*Client)

// WithToken sends a bearer token with every vote
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the instrumented default client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithSessionID resumes an existing session instead of minting one
func WithSessionID(id string) Option {
	return func(c *Client) { c.sessionID = id }
}

// WithDevice sets the fingerprint attributes reported with each vote
func WithDevice(d fingerprint.DeviceFingerprint) Option {
	return func(c *Client) { c.device = d }
}

// WithMaxAttempts bounds the local proof-of-work search
func WithMaxAttempts(n int) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// New creates a client for baseURL
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "votectl",
			Timeout:     15 * time.Second,
		}),
		actions:     behavior.NewActionLog(behavior.MaxActions),
		maxAttempts: DefaultMaxAttempts,
		device: fingerprint.DeviceFingerprint{
			UserAgent:           "votectl/1.0",
			ScreenResolution:    "1920x1080",
			Timezone:            "UTC",
			Language:            "en-US",
			Platform:            "Linux x86_64",
			HardwareConcurrency: 8,
			ColorDepth:          24,
			PixelRatio:          1,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = NewSessionID(time.Now())
	}
	return c
}

// SessionID returns the session this client votes as
func (c *Client) SessionID() string { return c.sessionID }

// Device returns the reported fingerprint attributes
func (c *Client) Device() fingerprint.DeviceFingerprint { return c.device }

// Record notes an interaction; only the newest behavior.MaxActions are kept
func (c *Client) Record(action string, at time.Time) {
	c.actions.Add(behavior.ActionEvent{Timestamp: at.UnixMilli(), Action: action})
}

// NewSessionID returns an id of the form anon_<unix ms>_<9 base36 chars>
func NewSessionID(now time.Time) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	suffix := make([]byte, 9)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		suffix[i] = alphabet[n.Int64()]
	}
	return "anon_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}

// ProofOfWork fetches a puzzle at the given tier
func (c *Client) ProofOfWork(ctx context.Context, tier int) (challenges.ProofOfWork, error) {
	var out challenges.ProofOfWork
	q := url.Values{"tier": {strconv.Itoa(tier)}}
	err := c.get(ctx, "/api/v1/challenges/pow?"+q.Encode(), &out)
	return out, err
}

// TimeChallenge fetches a dwell-time token
func (c *Client) TimeChallenge(ctx context.Context) (challenges.TimeChallenge, error) {
	var out challenges.TimeChallenge
	err := c.get(ctx, "/api/v1/challenges/time", &out)
	return out, err
}

// VoteOptions are per-vote extras
type VoteOptions struct {
	CaptchaToken  string
	TimeChallenge string
}

// Vote toggles the like on postID. A proof-of-work demand is solved and the
// vote resubmitted once.
func (c *Client) Vote(ctx context.Context, postID string, opts VoteOptions) (voting.SuccessResponse, error) {
	req := voting.Request{
		PostID:       postID,
		SessionID:    c.sessionID,
		Fingerprint:  &c.device,
		CaptchaToken: opts.CaptchaToken,
		Timestamp:    time.Now().UnixMilli(),
		ActionLog:    c.actions.Last(ActionsSent),
	}
	if opts.TimeChallenge != "" {
		req.TimeChallenge = &voting.TimeAnswer{Token: opts.TimeChallenge}
	}

	ok, err := c.submit(ctx, &req)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return ok, err
	}

	switch {
	case apiErr.Body.RequireProofOfWork && apiErr.Body.Challenge != "":
		solution, err := challenges.Solve(ctx, apiErr.Body.Challenge, apiErr.Body.Prefix, c.maxAttempts)
		if err != nil {
			return voting.SuccessResponse{}, fmt.Errorf("solve proof of work: %w", err)
		}
		req.ProofOfWork = &challenges.Submission{
			Challenge:      apiErr.Body.Challenge,
			Solution:       solution,
			ExpectedPrefix: apiErr.Body.Prefix,
		}
		return c.submit(ctx, &req)
	case apiErr.Body.RequireCaptcha && opts.CaptchaToken == "":
		return voting.SuccessResponse{}, fmt.Errorf("%w: %s", ErrCaptchaRequired, apiErr.Body.Error)
	}
	return ok, err
}

func (c *Client) submit(ctx context.Context, req *voting.Request) (voting.SuccessResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return voting.SuccessResponse{}, fmt.Errorf("failed to encode vote: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/vote", &buf)
	if err != nil {
		return voting.SuccessResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	var out voting.SuccessResponse
	err = c.do(httpReq, &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(body, &apiErr.Body); err != nil || apiErr.Body.Error == "" {
			apiErr.Body.Error = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
