package device

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		name      string
		userAgent string
		browser   string
		os        string
	}{
		{
			name:      "chrome on a mac",
			userAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			browser:   "Chrome",
			os:        "macOS",
		},
		{
			name:      "safari on an iphone",
			userAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			browser:   "Safari",
			os:        "iPhone",
		},
		{
			name:      "firefox on linux",
			userAgent: "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
			browser:   "Firefox",
			os:        "Linux",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseUserAgent(tt.userAgent)
			assert.True(t, strings.HasPrefix(got, tt.browser+" "), "got %q", got)
			assert.True(t, strings.HasSuffix(got, " on "+tt.os), "got %q", got)
		})
	}
}

func TestParseUserAgentFallbacks(t *testing.T) {
	assert.Equal(t, unknownDevice, ParseUserAgent(""))
	assert.Equal(t, unknownDevice, ParseUserAgent(" \t"))

	got := ParseUserAgent("peoplehub-cli/1.0")
	assert.Contains(t, got, " on ")
	assert.Equal(t, strings.TrimSpace(got), got)
}
