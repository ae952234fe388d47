package voting

import (
	"time"

	"github.com/vibeai/backend/internal/behavior"
	"github.com/vibeai/backend/internal/challenges"
	"github.com/vibeai/backend/internal/fingerprint"
)

// Request is the vote submission body
type Request struct {
	PostID        string                         `json:"postId"`
	SessionID     string                         `json:"sessionId"`
	Fingerprint   *fingerprint.DeviceFingerprint `json:"fingerprint"`
	CaptchaToken  string                         `json:"captchaToken,omitempty"`
	ProofOfWork   *challenges.Submission         `json:"proofOfWork,omitempty"`
	Honeypot      string                         `json:"honeypot"`
	EmailConfirm  string                         `json:"email_confirm,omitempty"`
	TimeChallenge *TimeAnswer                    `json:"timeChallenge,omitempty"`
	Timestamp     int64                          `json:"timestamp"`
	ActionLog     []behavior.ActionEvent         `json:"actionLog,omitempty"`
}

// TimeAnswer returns a previously issued time challenge token
type TimeAnswer struct {
	Token string `json:"token"`
}

// Caller is what the transport knows about the submitter
type Caller struct {
	IP          string
	PrincipalID string
	RequestID   string
	ReceivedAt  time.Time
}

// honeypotValue merges the two accepted trap field names
func (r *Request) honeypotValue() string {
	if r.Honeypot != "" {
		return r.Honeypot
	}
	return r.EmailConfirm
}
