package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/netip"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// proxyIPHeaders are consulted in order after X-Forwarded-For.
var proxyIPHeaders = []string{
	"X-Real-IP",
	"CF-Connecting-IP",
	"True-Client-IP",
	"X-Client-IP",
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("::1/128"),
}

// getClientIP resolves the public address of the requesting browser, walking
// the usual reverse-proxy headers before falling back to the socket peer.
// The result feeds the visitor fingerprint, so it must be stable for a given
// client regardless of which proxy hop recorded it.
func getClientIP(c *fiber.Ctx) string {
	if ip := firstPublicIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}

	for _, header := range proxyIPHeaders {
		if value := c.Get(header); value != "" {
			if ip := firstPublicIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := firstPublicIP(forwardedForValues(forwarded)); ip != "" {
			return ip
		}
	}

	if ip := firstPublicIP([]string{c.Context().RemoteAddr().String(), c.IP()}); ip != "" {
		return ip
	}

	// No public address anywhere; the fingerprint still needs a stable input.
	slog.Default().Info("Fallback to loopback IP for request",
		slog.String("path", c.Path()),
		slog.Any("headers", c.GetReqHeaders()))
	return "127.0.0.1"
}

// firstPublicIP returns the first public IPv4 among the candidates, or the
// first public IPv6 when no IPv4 is present.
func firstPublicIP(candidates []string) string {
	var ipv6Fallback string

	for _, raw := range candidates {
		addr, ok := parseAddrCandidate(raw)
		if !ok || isPrivateAddr(addr) {
			continue
		}
		if addr.Is4() {
			return addr.String()
		}
		if ipv6Fallback == "" {
			ipv6Fallback = addr.String()
		}
	}

	return ipv6Fallback
}

// parseAddrCandidate tolerates the shapes proxies put in forwarding headers:
// bare addresses, addr:port, bracketed IPv6, quoted values, zone suffixes.
func parseAddrCandidate(raw string) (netip.Addr, bool) {
	clean := strings.Trim(strings.TrimSpace(raw), `"`)
	if clean == "" {
		return netip.Addr{}, false
	}

	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		return addrPort.Addr().Unmap(), true
	}

	trimmed := clean
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		trimmed = trimmed[1 : len(trimmed)-1]
	}
	if addr, err := netip.ParseAddr(trimmed); err == nil {
		return addr.Unmap(), true
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return parseAddrCandidate(host)
	}

	return netip.Addr{}, false
}

func isPrivateAddr(addr netip.Addr) bool {
	for _, block := range privateRanges {
		if block.Contains(addr) {
			return true
		}
	}
	return false
}

// forwardedForValues extracts the for= entries of an RFC 7239 Forwarded
// header, in order.
func forwardedForValues(header string) []string {
	var values []string

	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				values = append(values, part[len("for="):])
			}
		}
	}

	return values
}

// generateETag derives a strong ETag from the response body.
func generateETag(content []byte) string {
	sum := sha256.Sum256(content)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}
