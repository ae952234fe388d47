// Package fingerprint hashes device and browser characteristics into a
// stable grouping key. The hash is a heuristic, never a credential.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrEmpty is returned when no identifying attribute was supplied
var ErrEmpty = errors.New("fingerprint has no attributes")

// DeviceFingerprint is the set of attributes a client reports
type DeviceFingerprint struct {
	UserAgent           string  `json:"userAgent"`
	ScreenResolution    string  `json:"screenResolution"`
	Timezone            string  `json:"timezone"`
	Language            string  `json:"language"`
	Platform            string  `json:"platform"`
	HardwareConcurrency int     `json:"hardwareConcurrency"`
	DeviceMemory        float64 `json:"deviceMemory"`
	ColorDepth          int     `json:"colorDepth"`
	PixelRatio          float64 `json:"pixelRatio"`
	TouchSupport        bool    `json:"touchSupport"`
	// Canvas is a digest (or data URL) of a rendered canvas snapshot
	Canvas string `json:"canvas"`
	// WebGL is the unmasked vendor~renderer string
	WebGL string `json:"webgl"`
}

// HashLength is the length of a hex digest returned by Generate
const HashLength = sha256.Size * 2

// Validate rejects a fingerprint with no identifying attributes
func (f DeviceFingerprint) Validate() error {
	if f.UserAgent == "" && f.ScreenResolution == "" && f.Platform == "" &&
		f.Canvas == "" && f.WebGL == "" {
		return ErrEmpty
	}
	return nil
}

// Normalize trims whitespace so cosmetic differences do not split one device
func (f DeviceFingerprint) Normalize() DeviceFingerprint {
	f.UserAgent = strings.TrimSpace(f.UserAgent)
	f.ScreenResolution = strings.ToLower(strings.TrimSpace(f.ScreenResolution))
	f.Timezone = strings.TrimSpace(f.Timezone)
	f.Language = strings.ToLower(strings.TrimSpace(f.Language))
	f.Platform = strings.TrimSpace(f.Platform)
	f.Canvas = strings.TrimSpace(f.Canvas)
	f.WebGL = strings.TrimSpace(f.WebGL)
	return f
}

// Components returns the attributes in their fixed serialization order
func (f DeviceFingerprint) Components() []string {
	return []string{
		f.UserAgent,
		f.ScreenResolution,
		f.Timezone,
		f.Language,
		f.Platform,
		strconv.Itoa(f.HardwareConcurrency),
		strconv.FormatFloat(f.DeviceMemory, 'f', -1, 64),
		strconv.Itoa(f.ColorDepth),
		strconv.FormatFloat(f.PixelRatio, 'f', -1, 64),
		strconv.FormatBool(f.TouchSupport),
		f.Canvas,
		f.WebGL,
	}
}

// Generate returns the hex sha256 of the normalized attributes joined by "|".
// Field order is fixed, so the same device state always hashes identically.
func Generate(f DeviceFingerprint) string {
	sum := sha256.Sum256([]byte(strings.Join(f.Normalize().Components(), "|")))
	return hex.EncodeToString(sum[:])
}

// IsHash reports whether s looks like a digest produced by Generate
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
