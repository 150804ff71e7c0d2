package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// PolicyHash computes the deterministic digest of a caller-supplied
// policy object. Maps marshal with sorted keys, so equal policies hash
// equal regardless of construction order.
func PolicyHash(policy any) (string, error) {
	if policy == nil {
		policy = map[string]any{}
	}
	blob, err := json.Marshal(policy)
	if err != nil {
		return "", fmt.Errorf("marshal policy: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])[:16], nil
}

// CanonicalFields renders a field map in its canonical comparable form.
func CanonicalFields(fields map[string]string) (string, error) {
	if fields == nil {
		fields = map[string]string{}
	}
	blob, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}
	return string(blob), nil
}
