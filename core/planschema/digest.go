package planschema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Digest returns a sha256 hex digest over the RFC 8785 (JCS) canonical JSON
// form of a validated plan. Equivalent plans produce equal digests regardless
// of encoding key order, which lets agents detect plan drift cheaply.
func Digest(plan *Plan) (string, error) {
	if plan == nil {
		return "", fmt.Errorf("digest requires a plan")
	}
	encoded, err := json.Marshal(plan)
	if err != nil {
		return "", fmt.Errorf("encode plan: %w", err)
	}
	canonical, err := jcs.Transform(encoded)
	if err != nil {
		return "", fmt.Errorf("canonicalize plan: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
