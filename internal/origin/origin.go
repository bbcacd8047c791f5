// Package origin validates browser Origin headers for the WebSocket upgrade.
//
// The relay is an open rendezvous point by default, but deployments that set
// an origin allowlist must not be joinable from arbitrary web pages.
package origin

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates and canonicalizes an Origin header into
// scheme://host[:port] form, dropping default ports. The special value "null"
// is passed through.
func Normalize(header string) (normalized string, host string, ok bool) {
	trimmed := strings.TrimSpace(header)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", "", false
	}

	var port uint64
	if raw := u.Port(); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || n == 0 {
			return "", "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host = hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host += ":" + strconv.FormatUint(port, 10)
	}
	return scheme + "://" + host, host, true
}

// Allowed reports whether a request with the given Origin header may upgrade.
//
// An empty header is allowed (non-browser clients). With a non-empty
// allowlist, entries are either "*" or normalized origins. Without an
// allowlist the policy is same-host: the origin's host must equal the
// request's Host header (default ports equivalent).
func Allowed(header, requestHost string, allowlist []string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}

	normalized, originHost, ok := Normalize(header)
	if !ok {
		return false
	}

	if len(allowlist) > 0 {
		for _, entry := range allowlist {
			if entry == "*" || entry == normalized {
				return true
			}
		}
		return false
	}

	if normalized == "null" {
		return false
	}
	return sameHost(originHost, requestHost)
}

func sameHost(originHost, requestHost string) bool {
	if originHost == "" || requestHost == "" {
		return false
	}
	return canonicalHost(originHost) == canonicalHost(requestHost)
}

// canonicalHost lowercases and strips default HTTP(S) ports so
// "example.com:443" compares equal to "example.com".
func canonicalHost(hostport string) string {
	hostport = strings.ToLower(strings.TrimSpace(hostport))
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	if port == "80" || port == "443" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return hostport
}
