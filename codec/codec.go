// Package codec implements the reversible obfuscation applied to persisted
// values, plus the versioned envelope format used for the stored credential.
//
// This is deliberately NOT encryption. The transform is a keyless,
// deterministic permutation over a base64 encoding: anyone who reads this
// code can invert it. Its only job is to keep secrets from being readable
// by casual inspection of the persistence layer; do not replace it with a
// real cipher without flagging the format change, since stored values must
// remain recoverable without any key.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/pixelforge/scanvault/clock"
)

// EnvelopePrefix marks an obfuscated credential envelope. A string without
// this exact prefix is never treated as an envelope.
const EnvelopePrefix = "SVX1:"

// EnvelopeVersion is the current envelope format version.
const EnvelopeVersion = 1

// maskRunes is the fixed redaction mask used for display.
const maskRunes = "••••••••"

// Codec obfuscates and recovers JSON-serializable values.
type Codec struct {
	clk    clock.Clock
	maxAge time.Duration
}

// New creates a Codec. maxAge bounds how old a credential envelope may be
// before Unwrap rejects it.
func New(clk clock.Clock, maxAge time.Duration) *Codec {
	return &Codec{clk: clk, maxAge: maxAge}
}

// Encode obfuscates v. Returns ("", false) on any failure; it never panics
// on unsupported values.
func (c *Codec) Encode(v any) (string, bool) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	text := base64.RawURLEncoding.EncodeToString(raw)
	return scramble(text), true
}

// Decode inverts Encode into out. Returns false on any failure; callers
// cannot distinguish corrupted input from absent input.
func (c *Codec) Decode(s string, out any) bool {
	text, ok := unscramble(s)
	if !ok {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(text)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// envelope wraps a credential with issuance metadata before obfuscation.
type envelope struct {
	Secret   string `json:"secret"`
	IssuedAt int64  `json:"issued_at"` // unix milliseconds
	Version  int    `json:"version"`
}

// WrapCredential packs secret into a prefixed, obfuscated envelope.
func (c *Codec) WrapCredential(secret string) (string, bool) {
	if secret == "" {
		return "", false
	}
	env := envelope{
		Secret:   secret,
		IssuedAt: c.clk.Now().UnixMilli(),
		Version:  EnvelopeVersion,
	}
	body, ok := c.Encode(env)
	if !ok {
		return "", false
	}
	return EnvelopePrefix + body, true
}

// UnwrapCredential recovers the secret from a wrapped envelope. It fails on
// a missing or wrong prefix, an unknown version, or an envelope older than
// the configured max age.
func (c *Codec) UnwrapCredential(s string) (string, bool) {
	if !strings.HasPrefix(s, EnvelopePrefix) {
		return "", false
	}
	var env envelope
	if !c.Decode(strings.TrimPrefix(s, EnvelopePrefix), &env) {
		return "", false
	}
	if env.Version != EnvelopeVersion || env.Secret == "" {
		return "", false
	}
	age := c.clk.Now().UnixMilli() - env.IssuedAt
	if age < 0 || time.Duration(age)*time.Millisecond > c.maxAge {
		return "", false
	}
	return env.Secret, true
}

// Mask returns a redacted display form of secret: the fixed mask plus the
// last four characters, or the mask alone for short secrets. Display only;
// never stored or compared.
func Mask(secret string) string {
	if len(secret) < 8 {
		return maskRunes
	}
	return maskRunes + secret[len(secret)-4:]
}
