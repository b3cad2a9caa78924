// Package dns resolves the relay host, falling back to public resolvers when
// the system resolver fails.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// publicDNS are servers to be queried if a local lookup fails.
var publicDNS = []string{
	"1.0.0.1",              // Cloudflare
	"1.1.1.1",              // Cloudflare
	"2606:4700:4700::1111", // Cloudflare
	"8.8.4.4",              // Google
	"8.8.8.8",              // Google
	"2001:4860:4860::8888", // Google
	"9.9.9.9",              // Quad9
	"149.112.112.112",      // Quad9
	"2620:fe::fe",          // Quad9
	"208.67.220.220",       // Cisco OpenDNS
	"208.67.222.222",       // Cisco OpenDNS
}

// LookupFunc resolves a host against one resolver.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver tries the system resolver first, then races the public servers.
type Resolver struct {
	LocalTimeout time.Duration
	RaceTimeout  time.Duration

	// Local is the system lookup. Remote builds a lookup against one server.
	Local   LookupFunc
	Remote  func(server string) LookupFunc
	Servers []string
}

// Default is the resolver used by Lookup and DialContext.
var Default = &Resolver{
	LocalTimeout: time.Second,
	RaceTimeout:  2 * time.Second,
	Local:        net.DefaultResolver.LookupHost,
	Remote:       serverLookup,
	Servers:      publicDNS,
}

// Lookup resolves host with the Default resolver.
func Lookup(ctx context.Context, host string) (string, error) {
	return Default.Lookup(ctx, host)
}

// DialContext resolves the host of addr with the Default resolver and dials
// it. It fits websocket.Dialer.NetDialContext.
func DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ip, err := Lookup(ctx, host)
	if err != nil {
		return nil, err
	}
	var d net.Dialer
	return d.DialContext(ctx, network, net.JoinHostPort(ip, port))
}

// Lookup resolves a hostname to an IP address, preferring IPv4. IP literals
// are returned unchanged.
func (r *Resolver) Lookup(ctx context.Context, host string) (string, error) {
	if net.ParseIP(host) != nil {
		return host, nil
	}

	localCtx, cancel := context.WithTimeout(ctx, r.LocalTimeout)
	ips, err := r.Local(localCtx, host)
	cancel()
	if err == nil && len(ips) > 0 {
		return pick(ips), nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}

	return r.race(ctx, host)
}

// race returns the first answer from the public servers.
func (r *Resolver) race(ctx context.Context, host string) (string, error) {
	if len(r.Servers) == 0 {
		return "", fmt.Errorf("failed to resolve %s: no public DNS servers configured", host)
	}

	type result struct {
		ips []string
		err error
	}

	ctx, cancel := context.WithTimeout(ctx, r.RaceTimeout)
	defer cancel()

	results := make(chan result, len(r.Servers))
	for _, server := range r.Servers {
		go func(lookup LookupFunc) {
			ips, err := lookup(ctx, host)
			results <- result{ips: ips, err: err}
		}(r.Remote(server))
	}

	failures := 0
	for range r.Servers {
		select {
		case res := <-results:
			if res.err == nil && len(res.ips) > 0 {
				return pick(res.ips), nil
			}
			failures++
		case <-ctx.Done():
			return "", fmt.Errorf("DNS lookup timed out during public DNS race: %w", ctx.Err())
		}
	}

	return "", fmt.Errorf("failed to resolve %s: all %d public DNS servers failed", host, failures)
}

// serverLookup queries a specific DNS server on port 53.
func serverLookup(server string) LookupFunc {
	r := &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, net.JoinHostPort(server, "53"))
		},
	}
	return func(ctx context.Context, host string) ([]string, error) {
		ips, err := r.LookupHost(ctx, host)
		if err == nil && len(ips) == 0 {
			err = errors.New("no IPs returned")
		}
		return ips, err
	}
}

// pick prefers IPv4.
func pick(ips []string) string {
	for _, ip := range ips {
		if net.ParseIP(ip).To4() != nil {
			return ip
		}
	}
	return ips[0]
}
