// Package httpclient builds the outbound HTTP clients used to reach language
// model providers.
//
// Every request is limited to http and https, URLs carrying credentials are
// refused, and redirects are bounded. Clients for hosted providers also
// refuse loopback, private and link-local destinations, checked both on the
// URL and on every address the host resolves to.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/teranos/FINQ/errors"
)

// DefaultMaxRedirects bounds redirect chains when Options.MaxRedirects is 0
const DefaultMaxRedirects = 5

// ErrBlockedURL marks a request refused before any bytes were sent
var ErrBlockedURL = errors.New("outbound URL blocked")

// Options tunes New
type Options struct {
	AllowPrivate bool // local inference servers live on loopback or the LAN
	MaxRedirects int
}

// extraBlocked covers special-use ranges netip has no predicate for
var extraBlocked = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("2001:db8::/32"),
	netip.MustParsePrefix("fec0::/10"),
}

// New returns a guarded client with the given overall request timeout
func New(timeout time.Duration, opts Options) *http.Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	if !opts.AllowPrivate {
		base.Proxy = nil
		base.DialContext = dialPublic(dialer)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &guard{base: base, allowPrivate: opts.AllowPrivate},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errors.Newf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// guard validates every request, redirects included, before it is sent
type guard struct {
	base         http.RoundTripper
	allowPrivate bool
}

func (g *guard) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := checkURL(req.URL, g.allowPrivate); err != nil {
		return nil, err
	}
	return g.base.RoundTrip(req)
}

// CheckURL parses raw and reports whether a client built with the same
// allowPrivate setting would send a request to it
func CheckURL(raw string, allowPrivate bool) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrBlockedURL, "invalid URL: %v", err)
	}
	if err := checkURL(u, allowPrivate); err != nil {
		return nil, err
	}
	return u, nil
}

func checkURL(u *url.URL, allowPrivate bool) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return errors.Wrapf(ErrBlockedURL, "scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.Wrap(ErrBlockedURL, "URL carries credentials")
	}

	host := u.Hostname()
	if host == "" {
		return errors.Wrap(ErrBlockedURL, "URL has no host")
	}
	if allowPrivate {
		return nil
	}

	if isLocalhost(host) {
		return errors.Wrapf(ErrBlockedURL, "host %s is local", host)
	}
	if ip, err := netip.ParseAddr(host); err == nil && blockedAddr(ip) {
		return errors.Wrapf(ErrBlockedURL, "private address %s", host)
	}
	return nil
}

// dialPublic resolves the host once, rejects private answers and dials the
// vetted address so a second lookup cannot rebind it
func dialPublic(dialer *net.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, errors.Wrap(err, "invalid address")
		}

		ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %q", host)
		}
		if len(ips) == 0 {
			return nil, errors.Newf("no addresses for %q", host)
		}
		for _, ip := range ips {
			if blockedAddr(ip) {
				return nil, errors.Wrapf(ErrBlockedURL, "%s resolves to private address %s", host, ip)
			}
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].Unmap().String(), port))
	}
}

func blockedAddr(ip netip.Addr) bool {
	ip = ip.Unmap()
	if !ip.IsValid() || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() {
		return true
	}
	for _, p := range extraBlocked {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" ||
		host == "localhost.localdomain" ||
		strings.HasSuffix(host, ".localhost")
}
