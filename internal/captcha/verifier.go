// Package captcha verifies CAPTCHA tokens with an external siteverify endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/vibeai/backend/internal/config"
	"github.com/vibeai/backend/internal/logger"
	"github.com/vibeai/backend/internal/metrics"
	"github.com/vibeai/backend/internal/telemetry"
	"go.uber.org/zap"
)

// ErrUnconfigured is returned when no secret is set and the policy does not allow it
var ErrUnconfigured = errors.New("captcha verifier is not configured")

// Verifier checks a CAPTCHA response token
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// HCaptcha talks to the hCaptcha siteverify API
type HCaptcha struct {
	secret            string
	verifyURL         string
	allowUnconfigured bool
	client            *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname,omitempty"`
	ErrorCodes []string `json:"error-codes,omitempty"`
}

// NewHCaptcha builds a verifier from the captcha policy
func NewHCaptcha(policy config.CaptchaPolicy) *HCaptcha {
	return &HCaptcha{
		secret:            policy.Secret,
		verifyURL:         policy.VerifyURL,
		allowUnconfigured: policy.AllowUnconfigured,
		client: telemetry.NewInstrumentedHTTPClient(telemetry.HTTPClientConfig{
			ServiceName: "hcaptcha",
			Timeout:     policy.Timeout,
		}),
	}
}

// Configured reports whether a secret is present
func (h *HCaptcha) Configured() bool {
	return h.secret != ""
}

// Verify returns true only for a positive siteverify answer. Transport and
// decode failures are reported as false with the error attached.
func (h *HCaptcha) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	m := metrics.Get()

	if strings.TrimSpace(token) == "" {
		m.CaptchaRequestsTotal.WithLabelValues("empty").Inc()
		return false, nil
	}

	if !h.Configured() {
		if h.allowUnconfigured {
			logger.Log.Warn("captcha secret missing, accepting token unverified")
			m.CaptchaRequestsTotal.WithLabelValues("unconfigured_allowed").Inc()
			return true, nil
		}
		m.CaptchaRequestsTotal.WithLabelValues("unconfigured").Inc()
		return false, ErrUnconfigured
	}

	ctx, span := telemetry.TraceExternalCall(ctx, "hcaptcha", "siteverify")
	defer span.End()

	form := url.Values{}
	form.Set("secret", h.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		telemetry.RecordExternalCallError(span, err, 0)
		m.CaptchaRequestsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.client.Do(req)
	if err != nil {
		telemetry.RecordExternalCallError(span, err, 0)
		m.CaptchaRequestsTotal.WithLabelValues("error").Inc()
		logger.Log.Warn("captcha siteverify call failed", zap.Error(err))
		return false, fmt.Errorf("siteverify request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("siteverify returned status %d", resp.StatusCode)
		telemetry.RecordExternalCallError(span, err, resp.StatusCode)
		m.CaptchaRequestsTotal.WithLabelValues("error").Inc()
		return false, err
	}

	var body siteverifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		telemetry.RecordExternalCallError(span, err, resp.StatusCode)
		m.CaptchaRequestsTotal.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	telemetry.RecordExternalCallSuccess(span, resp.StatusCode)
	if !body.Success {
		logger.Log.Debug("captcha rejected", zap.Strings("error_codes", body.ErrorCodes))
		m.CaptchaRequestsTotal.WithLabelValues("rejected").Inc()
		return false, nil
	}

	m.CaptchaRequestsTotal.WithLabelValues("passed").Inc()
	return true, nil
}

// Static always returns the same answer. Used by tests and the seed tool.
type Static bool

// Verify implements Verifier
func (s Static) Verify(_ context.Context, token, _ string) (bool, error) {
	return bool(s) && token != "", nil
}
