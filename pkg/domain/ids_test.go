package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "peoplehub/pkg/domain-errors"
)

// TestParseID_Invariants validates the parsing invariant:
// "IDs must be non-empty, bounded, printable tokens"
func TestParseID_Invariants(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Empty string", "", true},
		{"Whitespace only", "   ", true},
		{"Null byte injection", "abc\x00def", true},
		{"Inner whitespace", "abc def", true},
		{"Unicode zero-width space", "abc​def", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Non UTF-8", string([]byte{0xff, 0xfe}), true},

		{"UUID", "550e8400-e29b-41d4-a716-446655440000", false},
		{"Surrounding whitespace is trimmed", "  raw-1  ", false},
		{"Opaque token", "auth0|5f7c8ec7c33c6c004bbafe82", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfileID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestParse_TrimsInput(t *testing.T) {
	id, err := ParseIdentityID("  raw-1 ")
	require.NoError(t, err)
	assert.Equal(t, IdentityID("raw-1"), id)
}

// TestIdentityFallback documents the only sanctioned conversion between id kinds.
func TestIdentityFallback(t *testing.T) {
	raw := IdentityID("raw-1")
	assert.Equal(t, ProfileID("raw-1"), raw.AsProfileID())
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	for _, input := range []string{"", "a b", strings.Repeat("x", maxIDLength+1)} {
		_, errProfile := ParseProfileID(input)
		_, errIdentity := ParseIdentityID(input)
		_, errEmployee := ParseEmployeeID(input)

		require.Error(t, errProfile)
		require.Error(t, errIdentity)
		require.Error(t, errEmployee)
	}
}
