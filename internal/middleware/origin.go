package middleware

import (
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// OriginPolicy is the analysis endpoint's allow-list: exact origins plus
// compiled patterns for the hosting platform's preview-subdomain conventions.
// Evaluation is a single pure predicate so it can be tested in isolation.
type OriginPolicy struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

func NewOriginPolicy(exact []string, patterns []string) (*OriginPolicy, error) {
	p := &OriginPolicy{exact: make(map[string]struct{}, len(exact))}
	for _, o := range exact {
		p.exact[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	for _, raw := range patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid origin pattern %q: %w", raw, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// Allowed reports whether the resolved origin may call the analysis endpoint.
// An empty origin is never allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	if origin == "" {
		return false
	}
	if _, ok := p.exact[origin]; ok {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// ResolveOrigin prefers the Origin header and falls back to the Referer's
// scheme://host. Empty means the caller sent neither, i.e. direct API access.
func ResolveOrigin(r *http.Request) string {
	if o := r.Header.Get("Origin"); o != "" {
		return o
	}
	ref := r.Header.Get("Referer")
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// ClientIP resolves the caller's network address: first entry of
// X-Forwarded-For, then X-Real-IP, then the CDN header, else "unknown".
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if i := strings.IndexByte(xff, ','); i >= 0 {
			first = xff[:i]
		}
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}
	return "unknown"
}
