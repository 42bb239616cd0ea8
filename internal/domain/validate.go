package domain

import (
	"net"
	"regexp"
	"strconv"
	"strings"
)

var hostLabelRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// IsValidDomain accepts a DNS hostname or IP, optionally followed by :port.
// Anything carrying a scheme, path, query or userinfo is rejected.
func IsValidDomain(d string) bool {
	if d == "" || len(d) > 260 || strings.ContainsAny(d, "/?#@\\ ") {
		return false
	}

	host := d
	if h, p, err := net.SplitHostPort(d); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			return false
		}
		host = h
	}

	if net.ParseIP(host) != nil {
		return true
	}
	if len(host) > 253 {
		return false
	}
	for _, label := range strings.Split(strings.ToLower(host), ".") {
		if !hostLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// MaskToken keeps only a short prefix and suffix of a secret.
func MaskToken(tok string) string {
	tok = strings.TrimSpace(tok)
	switch {
	case tok == "":
		return ""
	case len(tok) <= 8:
		return strings.Repeat("*", len(tok))
	default:
		return tok[:4] + "…" + tok[len(tok)-4:]
	}
}
