// Package device turns a User-Agent header into the display name recorded
// with sign-in audit events.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent returns "<browser> on <os>", e.g. "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return unknownDevice
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	return strings.TrimSpace(browser + " on " + osName(ua))
}

func osName(ua *useragent.UserAgent) string {
	info := ua.OSInfo()
	switch {
	case strings.Contains(ua.Platform(), "iPhone"):
		return "iPhone"
	case strings.Contains(ua.Platform(), "iPad"):
		return "iPad"
	case strings.HasPrefix(info.FullName, "Intel Mac OS X"), info.Name == "Mac OS X":
		return "macOS"
	case info.Name != "":
		return info.Name
	case ua.Platform() != "":
		return ua.Platform()
	default:
		return "Unknown OS"
	}
}
