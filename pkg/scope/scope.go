package scope

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"spiderbot/pkg/config"
)

// Filter decides whether a discovered URL may enter the frontier.
// Malformed and non-http(s) URLs are always rejected; they are not fetch
// attempts and are never recorded as crawl failures
type Filter struct {
	seedHost        string
	seedRegistrable string
	restrict        bool
	scopeMode       string
}

// New builds a filter for the given seed host.
// scopeMode selects the matching granularity when restrict is true:
// config.ScopeHost compares hosts exactly (subdomains excluded),
// config.ScopeDomain compares registrable domains (public-suffix aware)
func New(seedHost string, restrict bool, scopeMode string) *Filter {
	host := strings.ToLower(seedHost)
	return &Filter{
		seedHost:        host,
		seedRegistrable: registrable(host),
		restrict:        restrict,
		scopeMode:       scopeMode,
	}
}

// Admissible reports whether the candidate URL passes the scoping policy
func (f *Filter) Admissible(candidate *url.URL) bool {
	if candidate == nil {
		return false
	}
	if candidate.Scheme != "http" && candidate.Scheme != "https" {
		return false
	}
	host := strings.ToLower(candidate.Hostname())
	if host == "" {
		return false
	}
	if !f.restrict {
		return true
	}
	if f.scopeMode == config.ScopeDomain {
		return registrable(host) == f.seedRegistrable
	}
	return host == f.seedHost
}

// AdmissibleRawURL parses and checks a raw candidate string.
// Parse failures reject silently
func (f *Filter) AdmissibleRawURL(raw string) bool {
	candidate, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return f.Admissible(candidate)
}

// registrable returns the eTLD+1 of a host, falling back to the host itself
// when the public suffix list cannot resolve it (IPs, localhost, intranet
// names)
func registrable(host string) string {
	etld1, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return etld1
}
