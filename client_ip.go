package iam

import (
	"net/http"
	"strings"
)

const (
	HeaderForwardedFor = "X-Forwarded-For"
	HeaderRealIP       = "X-Real-IP"

	unknownClientIP = "unknown"
)

// ClientIP returns the best effort origin address of a request. A present
// X-Forwarded-For header always wins with its trimmed first entry, even when
// that entry is blank. Otherwise X-Real-IP is returned as sent, then the peer
// address. The values are not validated.
func ClientIP(header http.Header, peer string) string {
	if forwarded := header.Get(HeaderForwardedFor); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	if realIP := header.Get(HeaderRealIP); realIP != "" {
		return realIP
	}

	if peer != "" {
		return peer
	}

	return unknownClientIP
}
