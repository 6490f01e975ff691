package values

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// MarshalCompact produces the compact JSON used for every persisted hash:
// no whitespace, no HTML escaping, struct fields in declaration order and
// map keys sorted. Both baseline and sample hashes are SHA-256 over exactly
// these bytes, so any change here breaks verification of stored hashes.
func MarshalCompact(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonical encode: %w", err)
	}
	// Encoder always terminates with a newline
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// HashCompact returns the SHA-256 of MarshalCompact(v) along with the bytes hashed.
func HashCompact(v any) (HashValue, []byte, error) {
	data, err := MarshalCompact(v)
	if err != nil {
		return HashValue{}, nil, err
	}
	return ComputeHashValue(data), data, nil
}

// NormalizeText applies Unicode NFC so visually identical Arabic text
// always serializes to the same bytes.
func NormalizeText(s string) string {
	return norm.NFC.String(s)
}
