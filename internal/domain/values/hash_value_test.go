package values

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/qaudit-backend/internal/domain/errors"
)

func generateValidHash(t *testing.T) string {
	t.Helper()
	sum := sha256.Sum256([]byte("qaudit"))
	return hex.EncodeToString(sum[:])
}

func TestNewHashValue(t *testing.T) {
	validHash := generateValidHash(t)

	tests := []struct {
		name    string
		hash    string
		wantErr bool
		errCode string
	}{
		{name: "valid hash", hash: validHash},
		{name: "valid hash uppercase", hash: strings.ToUpper(validHash)},
		{name: "hash with whitespace", hash: " " + validHash + " "},
		{name: "empty hash", hash: "", wantErr: true, errCode: "EMPTY_HASH"},
		{name: "invalid characters", hash: "g" + validHash[1:], wantErr: true, errCode: "INVALID_HASH_FORMAT"},
		{name: "too short", hash: validHash[:32], wantErr: true, errCode: "INVALID_HASH_FORMAT"},
		{name: "too long", hash: validHash + "00", wantErr: true, errCode: "INVALID_HASH_FORMAT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := NewHashValue(tt.hash)

			if tt.wantErr {
				require.Error(t, err)
				var appErr *errors.AppError
				require.True(t, stderrors.As(err, &appErr))
				assert.Equal(t, tt.errCode, appErr.Code)
				assert.True(t, hash.IsEmpty())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(strings.TrimSpace(tt.hash)), hash.String())
		})
	}
}

func TestHashValue_VerifyAndPrefix(t *testing.T) {
	data := []byte(`{"a":1}`)
	h := ComputeHashValue(data)

	assert.Len(t, h.String(), 64)
	assert.True(t, h.Verify(data))
	assert.False(t, h.Verify([]byte(`{"a":2}`)))
	assert.Equal(t, h.String()[:HashPrefixLength], h.Prefix())
	assert.False(t, HashValue{}.Verify(data))
}

func TestHashValue_JSONRoundTrip(t *testing.T) {
	h := ComputeHashValue([]byte("x"))

	data, err := json.Marshal(h)
	require.NoError(t, err)

	var decoded HashValue
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, h.Equal(decoded))
}

func TestMarshalCompact(t *testing.T) {
	type payload struct {
		B    string         `json:"b"`
		A    int            `json:"a"`
		Map  map[string]any `json:"map"`
		Text string         `json:"text"`
	}

	data, err := MarshalCompact(payload{
		B:    "<&>",
		A:    1,
		Map:  map[string]any{"z": 1, "a": 2},
		Text: "السنة",
	})
	require.NoError(t, err)

	// Declaration order, sorted map keys, no escaping, no trailing newline
	assert.Equal(t, `{"b":"<&>","a":1,"map":{"a":2,"z":1},"text":"السنة"}`, string(data))
}

func TestNormalizeText(t *testing.T) {
	// decomposed e + combining acute becomes the composed code point
	assert.Equal(t, "\u00e9", NormalizeText("e\u0301"))
	assert.Equal(t, "تدقيق", NormalizeText("تدقيق"))
}
