// Package challenges issues and verifies the client-side escalations of the
// vote pipeline: honeypot fields, proof-of-work puzzles and time challenges.
package challenges

// HoneypotField is the form field rendered off-screen and outside the tab order
const HoneypotField = "email_confirm"

// ValidateHoneypot is true only when the hidden field was left empty
func ValidateHoneypot(value string) bool {
	return value == ""
}
