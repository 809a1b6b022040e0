package webhook

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	ErrEndpointURL     = errors.New("webhook url is not an absolute URL")
	ErrEndpointScheme  = errors.New("webhook url must use https")
	ErrEndpointPort    = errors.New("webhook url must use port 443")
	ErrEndpointPrivate = errors.New("webhook url points at an internal address")
)

// resolveHost is replaced in tests.
var resolveHost = net.DefaultResolver.LookupNetIP

// checkEndpoint validates the configured receiver. Production endpoints must
// be https on 443 and must not resolve to loopback, private or link-local
// addresses. allowInsecure relaxes this to any http(s) URL with a host.
func checkEndpoint(raw string, allowInsecure bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil, ErrEndpointURL
	}

	if allowInsecure {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, ErrEndpointScheme
		}
		return u, nil
	}

	if u.Scheme != "https" {
		return nil, ErrEndpointScheme
	}
	if p := u.Port(); p != "" && p != "443" {
		return nil, ErrEndpointPort
	}

	host := strings.ToLower(u.Hostname())
	if internalHostname(host) {
		return nil, ErrEndpointPrivate
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		if internalAddr(addr) {
			return nil, ErrEndpointPrivate
		}
		return u, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	// A name that does not resolve yet fails at delivery time instead.
	addrs, err := resolveHost(ctx, "ip", host)
	if err == nil {
		for _, a := range addrs {
			if internalAddr(a) {
				return nil, ErrEndpointPrivate
			}
		}
	}
	return u, nil
}

func internalHostname(host string) bool {
	if host == "localhost" {
		return true
	}
	for _, suffix := range []string{".localhost", ".local", ".internal"} {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}

func internalAddr(a netip.Addr) bool {
	a = a.Unmap()
	return a.IsLoopback() || a.IsPrivate() || a.IsUnspecified() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast()
}

// hostForLog strips path and query, which may carry receiver tokens.
func hostForLog(u *url.URL) string {
	return u.Host
}
