package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "jane.doe", LocalPart("jane.doe@acme.com"))
	assert.Equal(t, "", LocalPart("@acme.com"))
	assert.Equal(t, "nodomain", LocalPart("  nodomain "))
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"single address", "a@x.com", []string{"a@x.com"}},
		{"semicolon joined", "a@x.com; b@x.com;c@x.com", []string{"a@x.com", "b@x.com", "c@x.com"}},
		{"drops empty entries", ";a@x.com;; ", []string{"a@x.com"}},
		{"empty", "", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitList(tt.input))
		})
	}
}

func TestPrimary(t *testing.T) {
	assert.Equal(t, "a@x.com", Primary(" a@x.com ;b@x.com"))
	assert.Equal(t, "", Primary(" ; "))
}

func TestDeriveNameFromEmail(t *testing.T) {
	first, last := DeriveNameFromEmail("jane.doe@acme.com")
	assert.Equal(t, "Jane", first)
	assert.Equal(t, "Doe", last)

	first, last = DeriveNameFromEmail("jsmith@acme.com")
	assert.Equal(t, "Jsmith", first)
	assert.Empty(t, last)

	first, last = DeriveNameFromEmail("")
	assert.Empty(t, first)
	assert.Empty(t, last)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "alt@x.com", Normalize("  Alt@X.com "))
}
