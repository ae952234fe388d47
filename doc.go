// Package backend provides the anonymous vote service.
//
// The admission pipeline lives in internal/voting and is assembled by
// internal/kernel. Supporting packages:
//
//   - internal/ratelimit: fixed-window counters (memory or Redis)
//   - internal/fingerprint: device digests
//   - internal/behavior: action-log scoring and per-session history
//   - internal/challenges: proof-of-work, time challenges, honeypot, replay guard
//   - internal/captcha: hCaptcha verification
//   - internal/anomaly: per-post burst detection
//   - internal/repository: the like ledger (gorm)
//   - internal/audit: asynchronous decision log (zap, Elasticsearch)
//   - internal/handlers, internal/middleware: the HTTP surface
//   - internal/client: Go client used by cmd/votectl
package backend
