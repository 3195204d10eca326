package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignatureHeader carries the HMAC-SHA256 of the raw body keyed with the app secret.
const SignatureHeader = "X-Hub-Signature-256"

// ValidSignature checks a "sha256=<hex>" signature against body.
func ValidSignature(body []byte, signature, appSecret string) bool {
	hexDigest, ok := strings.CutPrefix(signature, "sha256=")
	if !ok || hexDigest == "" {
		return false
	}

	sig, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)

	return hmac.Equal(sig, mac.Sum(nil))
}

// Sign returns the signature Meta would send for body. Used by tests and tooling.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
