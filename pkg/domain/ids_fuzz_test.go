//go:build go1.18

package domain

import (
	"testing"
	"unicode/utf8"
)

// FuzzParseProfileID tests that parsing never panics on arbitrary input
// and always returns either a valid ID or an error.
func FuzzParseProfileID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("raw-1")
	f.Add("'; DROP TABLE profiles;--")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseProfileID(input)
		if err == nil {
			roundTrip, err2 := ParseProfileID(id.String())
			if err2 != nil {
				t.Errorf("valid ID failed round-trip: %v", err2)
			}
			if roundTrip != id {
				t.Error("round-trip changed ID value")
			}
		}
		if !utf8.ValidString(input) && err == nil {
			t.Error("non-UTF8 input was accepted")
		}
	})
}
