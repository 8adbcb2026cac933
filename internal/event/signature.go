package event

import (
	"github.com/google/go-github/v73/github"
)

// VerifySignature reports whether signature is the HMAC of body under secret.
// The signature has the form "sha1=<hex>" (sha256 and sha512 prefixes are
// accepted as well) and is compared in constant time.
func VerifySignature(body []byte, signature string, secret []byte) bool {
	if signature == "" || len(secret) == 0 {
		return false
	}
	return github.ValidateSignature(signature, body, secret) == nil
}
