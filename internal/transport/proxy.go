package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// chainDialer builds a dialer that traverses every proxy in order before
// reaching the target. An empty chain dials directly.
func chainDialer(direct *net.Dialer, proxies []string) (dialFunc, error) {
	if len(proxies) == 0 {
		return direct.DialContext, nil
	}

	var hop proxy.Dialer = direct
	for i, raw := range proxies {
		u, err := ParseProxyURL(raw)
		if err != nil {
			return nil, fmt.Errorf("proxy %d: %w", i+1, err)
		}
		next, err := proxy.FromURL(u, hop)
		if err != nil {
			return nil, fmt.Errorf("%w: proxy %d (%s): %w", ErrProxyConfig, i+1, raw, err)
		}
		hop = next
	}

	if cd, ok := hop.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}

	final := hop
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		done := make(chan result, 1)
		go func() {
			conn, err := final.Dial(network, addr)
			done <- result{conn, err}
		}()
		select {
		case <-ctx.Done():
			go func() {
				if r := <-done; r.conn != nil {
					r.conn.Close()
				}
			}()
			return nil, ctx.Err()
		case r := <-done:
			return r.conn, r.err
		}
	}, nil
}

// ParseProxyURL validates one proxy URI from a chain
func ParseProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty proxy uri", ErrProxyConfig)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProxyConfig, err)
	}
	if u.Scheme == "" || u.Hostname() == "" || u.Port() == "" {
		return nil, fmt.Errorf("%w: %q must look like scheme://host:port", ErrProxyConfig, raw)
	}
	switch u.Scheme {
	case "socks5", "socks5h":
	default:
		return nil, fmt.Errorf("%w: unsupported proxy scheme %q", ErrProxyConfig, u.Scheme)
	}
	return u, nil
}
