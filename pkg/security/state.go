package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignState appends an HMAC of state so the OAuth callback can prove the
// value came from us
func SignState(state, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(state))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return state + "." + sig
}

func VerifySignedState(raw, secret string) (string, bool) {
	state, _, ok := strings.Cut(raw, ".")
	if !ok || state == "" {
		return "", false
	}

	expected := SignState(state, secret)
	if !hmac.Equal([]byte(expected), []byte(raw)) {
		return "", false
	}

	return state, true
}
