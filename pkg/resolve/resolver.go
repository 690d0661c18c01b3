package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/velemoonkon/portsweep/pkg/config"
)

// ErrNoAddress is returned when a host has no A or AAAA record
var ErrNoAddress = errors.New("no address found")

// Options configures a Resolver
type Options struct {
	// Servers to query, "host" or "host:port". Empty reads ResolvConf.
	Servers    []string
	ResolvConf string
	Timeout    time.Duration
}

// DefaultOptions returns resolver options from the environment
func DefaultOptions() Options {
	return Options{
		Servers:    splitServers(config.Resolver.Servers),
		ResolvConf: config.Resolver.ResolvConf,
		Timeout:    config.Resolver.Timeout,
	}
}

// Resolver turns hostnames into a single scan address
type Resolver struct {
	servers []string
	client  *dns.Client
}

// New creates a resolver. With no explicit servers the nameservers of
// opts.ResolvConf are used.
func New(opts Options) (*Resolver, error) {
	servers := make([]string, 0, len(opts.Servers))
	for _, s := range opts.Servers {
		servers = append(servers, withPort(s, "53"))
	}

	if len(servers) == 0 {
		cc, err := dns.ClientConfigFromFile(opts.ResolvConf)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", opts.ResolvConf, err)
		}
		for _, s := range cc.Servers {
			servers = append(servers, withPort(s, cc.Port))
		}
	}
	if len(servers) == 0 {
		return nil, errors.New("no DNS servers configured")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Resolver{
		servers: servers,
		client:  &dns.Client{Net: "udp", Timeout: timeout},
	}, nil
}

// Servers returns the servers queried, in order
func (r *Resolver) Servers() []string {
	return r.servers
}

// Resolve returns the first address for host. IP literals are returned as-is.
// IPv4 is tried before IPv6.
func (r *Resolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	var lastErr error
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ip, err := r.lookup(ctx, host, qtype)
		if err == nil {
			return ip, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}

	return nil, fmt.Errorf("%w for %s: %w", ErrNoAddress, host, lastErr)
}

// lookup asks each server in turn until one gives a usable answer
func (r *Resolver) lookup(ctx context.Context, host string, qtype uint16) (net.IP, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(host), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		resp, rtt, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			slog.Debug("dns query failed", "server", server, "host", host, "type", dns.TypeToString[qtype], "error", err)
			lastErr = err
			continue
		}

		if resp.Rcode == dns.RcodeNameError {
			// Authoritative answer: asking other servers will not help
			return nil, fmt.Errorf("%s: %s", dns.TypeToString[qtype], dns.RcodeToString[resp.Rcode])
		}
		if resp.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s from %s: %s", dns.TypeToString[qtype], server, dns.RcodeToString[resp.Rcode])
			continue
		}

		if ip := firstAddress(resp.Answer); ip != nil {
			slog.Debug("resolved", "host", host, "ip", ip.String(), "server", server, "rtt", rtt)
			return ip, nil
		}
		lastErr = fmt.Errorf("%s: empty answer", dns.TypeToString[qtype])
	}
	return nil, lastErr
}

func firstAddress(answers []dns.RR) net.IP {
	for _, rr := range answers {
		switch rec := rr.(type) {
		case *dns.A:
			return rec.A
		case *dns.AAAA:
			return rec.AAAA
		}
	}
	return nil
}

func withPort(server, port string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, port)
}

func splitServers(s string) []string {
	var servers []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			servers = append(servers, part)
		}
	}
	return servers
}
