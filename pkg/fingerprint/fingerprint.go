// Package fingerprint derives a best-effort stable identifier for a client
// device from environment attributes reported at login time.
//
// The fingerprint is a heuristic device label, not a security boundary: it
// only decides whether a second factor is demanded. Collisions are tolerable,
// guessability is not a concern (the OTP is the actual proof).
package fingerprint

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Length is the fixed length of every fingerprint string.
const Length = 32

const delimiter = "|"

// Environment holds the client attributes a fingerprint is computed from.
// The zero value is valid; missing attributes simply reduce stability.
type Environment struct {
	UserAgent        string
	Language         string
	ColorDepth       int
	ScreenWidth      int
	ScreenHeight     int
	TimezoneOffset   int // minutes from UTC
	CookiesEnabled   bool
	JavaEnabled      bool
	PDFViewerEnabled bool
}

// Compute returns the deterministic fingerprint for env: the fixed ordered
// attribute tuple joined with a delimiter, SHA-256 hashed, hex encoded and
// truncated to Length characters.
//
// The attribute order and delimiter are part of the contract; changing either
// would silently untrust every enrolled device.
func Compute(env Environment) string {
	parts := []string{
		env.UserAgent,
		env.Language,
		strconv.Itoa(env.ColorDepth),
		fmt.Sprintf("%dx%d", env.ScreenWidth, env.ScreenHeight),
		strconv.Itoa(env.TimezoneOffset),
		strconv.FormatBool(env.CookiesEnabled),
		strconv.FormatBool(env.JavaEnabled),
		strconv.FormatBool(env.PDFViewerEnabled),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, delimiter)))
	return hex.EncodeToString(sum[:])[:Length]
}

// Fallback returns the degraded-mode fingerprint used when hashing is
// unavailable on the client: base64 of user-agent plus screen dimensions,
// truncated to Length characters.
func Fallback(env Environment) string {
	raw := env.UserAgent + strconv.Itoa(env.ScreenWidth) + strconv.Itoa(env.ScreenHeight)
	enc := base64.StdEncoding.EncodeToString([]byte(raw))
	if len(enc) > Length {
		enc = enc[:Length]
	}
	return enc
}
