package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"

	"quotaguard/pkg/config"
)

// IPExtractor resolves the client address a request is rate-limited under.
// The resolved IP becomes the identifier of the caller's IP counting
// window, so the choice of extractor decides how hard the limit is to
// evade: RemoteAddrExtractor cannot be spoofed, TrustedProxyExtractor
// believes forwarding headers from known proxies only.
type IPExtractor interface {
	ExtractIP(r *http.Request) (string, error)
}

// RemoteAddrExtractor uses the TCP peer address and nothing else. The
// default when no reverse proxy fronts the service.
type RemoteAddrExtractor struct{}

func (RemoteAddrExtractor) ExtractIP(r *http.Request) (string, error) {
	return hostOnly(r.RemoteAddr)
}

// TrustedProxyConfig names the proxy addresses whose forwarding headers
// are believed. With Enabled false every forwarding header is ignored.
type TrustedProxyConfig struct {
	Enabled      bool
	AllowedCIDRs []netip.Prefix
}

// IsTrusted reports whether remoteAddr ("host:port" or bare IP) falls in
// one of the allowed ranges. Unparseable addresses are never trusted.
func (c *TrustedProxyConfig) IsTrusted(remoteAddr string) bool {
	host, err := hostOnly(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}

	for _, prefix := range c.AllowedCIDRs {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// LoadTrustedProxyConfig reads RATE_LIMIT_TRUST_PROXY and
// RATE_LIMIT_TRUSTED_PROXIES. Unlike the warn-and-default env helpers, a
// bad proxy list is a startup error: a typo here would silently re-key
// every IP window to the proxy's own address, so the service refuses to
// run instead.
func LoadTrustedProxyConfig() (*TrustedProxyConfig, error) {
	cfg := &TrustedProxyConfig{Enabled: config.GetEnvBool("RATE_LIMIT_TRUST_PROXY", false)}
	if !cfg.Enabled {
		return cfg, nil
	}

	entries := config.GetEnvStringList("RATE_LIMIT_TRUSTED_PROXIES", nil)
	if len(entries) == 0 {
		return nil, fmt.Errorf("RATE_LIMIT_TRUST_PROXY is enabled but RATE_LIMIT_TRUSTED_PROXIES is empty")
	}

	for _, entry := range entries {
		prefix, err := parseProxyEntry(entry)
		if err != nil {
			return nil, err
		}
		cfg.AllowedCIDRs = append(cfg.AllowedCIDRs, prefix)
	}
	return cfg, nil
}

// parseProxyEntry accepts CIDR notation or a bare address; bare addresses
// get a single-host prefix.
func parseProxyEntry(entry string) (netip.Prefix, error) {
	if prefix, err := netip.ParsePrefix(entry); err == nil {
		return prefix, nil
	}

	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("trusted proxy %q: not an IP address or CIDR range", entry)
	}
	bits := 32
	if addr.Is6() {
		bits = 128
	}
	return netip.PrefixFrom(addr, bits), nil
}

// TrustedProxyExtractor believes X-Forwarded-For and X-Real-IP when, and
// only when, the connection itself comes from a trusted proxy. Requests
// from anywhere else fall back to the peer address, so a client cannot
// rotate its apparent IP and dodge its counting window by minting headers.
type TrustedProxyExtractor struct {
	config TrustedProxyConfig
}

func NewTrustedProxyExtractor(config TrustedProxyConfig) *TrustedProxyExtractor {
	return &TrustedProxyExtractor{config: config}
}

func (e *TrustedProxyExtractor) ExtractIP(r *http.Request) (string, error) {
	if !e.config.Enabled {
		return hostOnly(r.RemoteAddr)
	}

	if !e.config.IsTrusted(r.RemoteAddr) {
		e.warnSpoofAttempt(r)
		return hostOnly(r.RemoteAddr)
	}

	if ip := forwardedClientIP(r.Header); ip != "" {
		return ip, nil
	}
	return hostOnly(r.RemoteAddr)
}

// warnSpoofAttempt logs forwarding headers arriving from outside the
// trusted set. Either a limit evasion attempt or a proxy missing from the
// allow list; both deserve an operator's attention.
func (e *TrustedProxyExtractor) warnSpoofAttempt(r *http.Request) {
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if v := r.Header.Get(header); v != "" {
			slog.Warn("ignoring forwarding header from untrusted address",
				slog.String("header", header),
				slog.String("value", v),
				slog.String("remote_addr", r.RemoteAddr))
		}
	}
}

// forwardedClientIP returns the first parseable client address in the
// forwarding headers, preferring X-Forwarded-For ("client, proxy1,
// proxy2") over X-Real-IP. Empty when neither header holds a valid IP.
func forwardedClientIP(h http.Header) string {
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
			return ip.String()
		}
	}
	if xri := h.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(strings.TrimSpace(xri)); ip != nil {
			return ip.String()
		}
	}
	return ""
}

// hostOnly strips the port from a RemoteAddr-style "host:port" value.
// Bare IPv4 and IPv6 addresses pass through unchanged.
func hostOnly(addr string) (string, error) {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host, nil
	}
	if ip := net.ParseIP(addr); ip != nil {
		return ip.String(), nil
	}
	return "", fmt.Errorf("client address %q is not host:port or a bare IP", addr)
}
