package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
)

// hmacFieldOrder is the provider-documented concatenation order over the
// nested transaction object. Order matters and must match exactly; dotted
// names traverse nested objects.
var hmacFieldOrder = []string{
	"amount_cents",
	"created_at",
	"currency",
	"error_occured",
	"has_parent_transaction",
	"id",
	"integration_id",
	"is_3d_secure",
	"is_auth",
	"is_capture",
	"is_refunded",
	"is_standalone_payment",
	"is_voided",
	"order.id",
	"owner",
	"pending",
	"source_data.pan",
	"source_data.sub_type",
	"source_data.type",
	"success",
}

// ProviderSignatureVerifier implements ports.SignatureVerifier for the
// payment provider's keyed-hash scheme: the documented fields of the
// transaction object, concatenated in order with no separator, HMAC-SHA512
// with the pre-shared secret, hex lowercase, compared constant-time against
// the top-level hmac field.
type ProviderSignatureVerifier struct {
	secret []byte
}

// NewProviderSignatureVerifier creates a verifier bound to the shared secret.
func NewProviderSignatureVerifier(secret string) *ProviderSignatureVerifier {
	return &ProviderSignatureVerifier{secret: []byte(secret)}
}

// Verify reports whether the raw webhook body is authentic. Malformed JSON,
// a missing or mistyped field, or a hash mismatch all mean "not authentic";
// Verify never panics or errors on hostile input.
func (v *ProviderSignatureVerifier) Verify(raw []byte) bool {
	var envelope struct {
		Obj  json.RawMessage `json:"obj"`
		HMAC string          `json:"hmac"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return false
	}
	if envelope.HMAC == "" || len(envelope.Obj) == 0 {
		return false
	}

	obj, ok := decodeObject(envelope.Obj)
	if !ok {
		return false
	}

	var concat strings.Builder
	for _, field := range hmacFieldOrder {
		s, ok := lookupField(obj, field)
		if !ok {
			return false
		}
		concat.WriteString(s)
	}

	mac := hmac.New(sha512.New, v.secret)
	mac.Write([]byte(concat.String()))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(envelope.HMAC)))
}

// decodeObject parses the transaction object keeping numbers in their JSON
// textual form, which is what the provider hashes.
func decodeObject(raw json.RawMessage) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

// lookupField resolves a possibly dotted field to its provider string form:
// numbers keep their JSON text, booleans render lowercase, strings pass
// through. Anything else is a type mismatch.
func lookupField(obj map[string]any, field string) (string, bool) {
	cur := any(obj)
	for _, part := range strings.Split(field, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		cur, ok = m[part]
		if !ok {
			return "", false
		}
	}

	switch val := cur.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case json.Number:
		return val.String(), true
	default:
		return "", false
	}
}
