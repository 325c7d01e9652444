package utils

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

var urlRegex = regexp.MustCompile(`(?:https?://)?(?:discord\.gg|discord\.com|discordapp\.com|[^\s]+\.[a-z]{2,})/[^\s]*|https?://[^\s]+`)

// ExtractURLs pulls URL-ish tokens out of message content, including
// bare invite links without a scheme.
func ExtractURLs(content string) []string {
	return urlRegex.FindAllString(content, -1)
}

// NormalizeHost resolves a raw URL token to its lowercase ASCII host,
// defeating unicode lookalike domains.
func NormalizeHost(raw string) (string, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if asciiHost, err := idna.ToASCII(host); err == nil {
		host = asciiHost
	}
	return host, nil
}
