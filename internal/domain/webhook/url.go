package webhook

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Destination validation errors.
var (
	ErrURLInvalid     = errors.New("webhook url is not a valid URL")
	ErrURLScheme      = errors.New("webhook url must use http or https")
	ErrURLHost        = errors.New("webhook url must have a host")
	ErrURLCredentials = errors.New("webhook url must not embed credentials")
	ErrURLPrivateHost = errors.New("webhook url must resolve to a public host")
	ErrURLSuffix      = errors.New("webhook url host must have a registrable public suffix")
)

var loopbackHostnames = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
}

// ValidateURL checks that a partner-supplied callback URL is an absolute
// http(s) URL pointing at a public destination. Literal private, loopback and
// link-local IPs are rejected, as are hostnames without an ICANN-managed
// public suffix. allowInsecure permits plain http and loopback targets for
// sandbox keys.
func ValidateURL(raw string, allowInsecure bool) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrURLInvalid
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !allowInsecure {
			return ErrURLScheme
		}
	default:
		return ErrURLScheme
	}

	if u.User != nil {
		return ErrURLCredentials
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ErrURLHost
	}

	if allowInsecure {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
			return ErrURLPrivateHost
		}
		return nil
	}

	if _, ok := loopbackHostnames[host]; ok {
		return ErrURLPrivateHost
	}

	if _, err := publicsuffix.EffectiveTLDPlusOne(host); err != nil {
		return ErrURLSuffix
	}
	return nil
}
