package esewa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Sign computes the gateway signature: base64(HMAC-SHA256(secret, msg))
// where msg is "name=value" pairs joined by commas, in the exact order of
// signedFieldNames. Field order is part of the contract.
func Sign(secret string, signedFieldNames string, values map[string]string) string {
	names := strings.Split(signedFieldNames, ",")
	pairs := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		pairs = append(pairs, name+"="+values[name])
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.Join(pairs, ",")))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the signature over the same fields and
// compares in constant time.
func VerifySignature(secret, signedFieldNames, signature string, values map[string]string) bool {
	expected := Sign(secret, signedFieldNames, values)
	return hmac.Equal([]byte(expected), []byte(signature))
}
