package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature(t *testing.T) {
	secret := "webhook-secret"
	payload := []byte(`{"event_type":"signed"}`)
	sig := SignPayload(secret, payload)

	assert.True(t, verifySignature(secret, payload, sig))
	assert.True(t, verifySignature(secret, payload, "  "+sig+"  "), "surrounding whitespace is tolerated")
	assert.True(t, verifySignature(secret, payload, sig[len("sha256="):]), "bare hex digest is accepted")
}

func TestVerifySignatureRejectsTampering(t *testing.T) {
	secret := "webhook-secret"
	payload := []byte(`{"event_type":"signed"}`)
	sig := SignPayload(secret, payload)

	assert.False(t, verifySignature(secret, []byte(`{"event_type":"declined"}`), sig))
	assert.False(t, verifySignature("other-secret", payload, sig))
	assert.False(t, verifySignature(secret, payload, "sha256=zzzz"), "non-hex digest")
}

func TestVerifySignatureNeverBypassed(t *testing.T) {
	payload := []byte(`{}`)

	assert.False(t, verifySignature("secret", payload, ""))
	assert.False(t, verifySignature("", payload, SignPayload("", payload)),
		"an empty secret fails even with a matching signature")
}
