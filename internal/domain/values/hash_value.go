package values

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

// HashPrefixLength is the number of hex characters shown in audit entries
const HashPrefixLength = 12

// HashValue represents a SHA-256 digest used to certify baselines and sample selections
type HashValue struct {
	hash string // Hex-encoded SHA-256 hash (64 characters)
}

var (
	// SHA-256 hex regex: exactly 64 hex characters
	sha256HexRegex = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// NewHashValue creates a new HashValue value object with validation
func NewHashValue(hash string) (HashValue, error) {
	if hash == "" {
		return HashValue{}, errors.NewInvalidInputError("EMPTY_HASH",
			"قيمة التجزئة فارغة")
	}

	normalized := strings.ToLower(strings.TrimSpace(hash))

	if !sha256HexRegex.MatchString(normalized) {
		return HashValue{}, errors.NewInvalidInputError("INVALID_HASH_FORMAT",
			"قيمة التجزئة يجب أن تكون 64 حرفاً ست عشرياً")
	}

	return HashValue{hash: normalized}, nil
}

// ComputeHashValue computes SHA-256 hash for the given data
func ComputeHashValue(data []byte) HashValue {
	sum := sha256.Sum256(data)
	return HashValue{hash: hex.EncodeToString(sum[:])}
}

// MustNewHashValue creates HashValue and panics on error (for constants/tests)
func MustNewHashValue(hash string) HashValue {
	h, err := NewHashValue(hash)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the hex-encoded hash
func (h HashValue) String() string {
	return h.hash
}

// IsEmpty checks if the hash is empty
func (h HashValue) IsEmpty() bool {
	return h.hash == ""
}

// Equal checks if two HashValue objects are equal
func (h HashValue) Equal(other HashValue) bool {
	return h.hash == other.hash
}

// Verify reports whether data hashes to h
func (h HashValue) Verify(data []byte) bool {
	if h.IsEmpty() {
		return false
	}
	return h.Equal(ComputeHashValue(data))
}

// Prefix returns the first HashPrefixLength characters for display
func (h HashValue) Prefix() string {
	if len(h.hash) <= HashPrefixLength {
		return h.hash
	}
	return h.hash[:HashPrefixLength]
}

// Format returns a formatted string for logging/display
func (h HashValue) Format() string {
	if h.IsEmpty() {
		return "<empty>"
	}
	return fmt.Sprintf("sha256:%s", h.Prefix())
}

// MarshalJSON implements JSON marshaling
func (h HashValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.hash)
}

// UnmarshalJSON implements JSON unmarshaling
func (h *HashValue) UnmarshalJSON(data []byte) error {
	var hash string
	if err := json.Unmarshal(data, &hash); err != nil {
		return err
	}

	hashValue, err := NewHashValue(hash)
	if err != nil {
		return err
	}

	*h = hashValue
	return nil
}

// Value implements driver.Valuer for database storage
func (h HashValue) Value() (driver.Value, error) {
	if h.hash == "" {
		return nil, nil
	}
	return h.hash, nil
}

// Scan implements sql.Scanner for database retrieval
func (h *HashValue) Scan(value interface{}) error {
	if value == nil {
		*h = HashValue{}
		return nil
	}

	var str string
	switch v := value.(type) {
	case string:
		str = v
	case []byte:
		str = string(v)
	default:
		return fmt.Errorf("cannot scan %T into HashValue", value)
	}

	if str == "" {
		*h = HashValue{}
		return nil
	}

	hashValue, err := NewHashValue(str)
	if err != nil {
		return err
	}

	*h = hashValue
	return nil
}
