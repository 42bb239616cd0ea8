package domain

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultDomain = "crm.biplaza.es"

type ValidationError struct {
	Details map[string]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Details) == 0 {
		return "invalid registration request"
	}
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Details[k]))
	}
	return strings.Join(parts, "; ")
}

// NormalizeAndValidate trims the request in place and falls back to
// defaultDomain (or DefaultDomain) when no domain was supplied.
func (r *RegistrationRequest) NormalizeAndValidate(defaultDomain string) map[string]string {
	details := map[string]string{}
	if r == nil {
		details["request"] = "required"
		return details
	}

	r.AuthToken = strings.TrimSpace(r.AuthToken)
	r.Domain = strings.ToLower(strings.TrimSpace(r.Domain))
	r.HandlerURL = strings.TrimSpace(r.HandlerURL)

	if r.Domain == "" {
		r.Domain = strings.ToLower(strings.TrimSpace(defaultDomain))
	}
	if r.Domain == "" {
		r.Domain = DefaultDomain
	}

	if r.AuthToken == "" {
		details["auth"] = "must not be empty"
	}

	if !IsValidDomain(r.Domain) {
		details["domain"] = "must be a hostname, optionally with :port"
	}

	if r.HandlerURL == "" {
		details["handlerUrl"] = "required"
	} else if !strings.HasPrefix(r.HandlerURL, "https://") && !strings.HasPrefix(r.HandlerURL, "http://") {
		details["handlerUrl"] = "must be an absolute http(s) URL"
	}

	return details
}

// CacheKey is the composite dedup key for a domain/token pair.
func CacheKey(domain, token string) string {
	return domain + "-" + token
}
