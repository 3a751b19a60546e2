package http

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"sort"
	"strings"
)

// signatureHeader carries the provider's payload signature.
const signatureHeader = "X-Provider-Signature"

// ComputeSignature implements the provider's provenance scheme: HMAC-SHA1
// over the full callback URL concatenated with every POST parameter name and
// value in lexicographic key order, keyed by the shared auth token, then
// base64. Exported so tests and tooling can sign requests the way the
// provider does.
func ComputeSignature(authToken, callbackURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(callbackURL)
	for _, k := range keys {
		for _, v := range form[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// validSignature compares the received signature in constant time.
func validSignature(authToken, callbackURL string, form url.Values, received string) bool {
	expected := ComputeSignature(authToken, callbackURL, form)
	return hmac.Equal([]byte(expected), []byte(received))
}
