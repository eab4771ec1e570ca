package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignPayload computes the webhook signature for a raw payload, in the
// format the provider presents it: "sha256=" + hex HMAC-SHA256.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyEventAuthenticity checks an inbound event signature against the
// shared webhook secret. The comparison is constant time and the check
// cannot be disabled: an empty secret or signature always fails.
func (c *Client) VerifyEventAuthenticity(payload []byte, signature string) bool {
	return verifySignature(c.cfg.WebhookSecret, payload, signature)
}

func verifySignature(secret string, payload []byte, signature string) bool {
	sig := strings.TrimSpace(signature)
	if sig == "" || secret == "" {
		return false
	}
	if strings.HasPrefix(strings.ToLower(sig), "sha256=") {
		sig = sig[len("sha256="):]
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}
