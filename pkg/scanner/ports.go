package scanner

import (
	"fmt"
	"net"
)

// Well-known TCP services, used only to label report rows
var knownServices = map[uint16]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "domain",
	80:    "http",
	110:   "pop3",
	143:   "imap",
	443:   "https",
	445:   "microsoft-ds",
	853:   "domain-s",
	993:   "imaps",
	995:   "pop3s",
	1433:  "ms-sql-s",
	3306:  "mysql",
	3389:  "ms-wbt-server",
	5432:  "postgresql",
	5672:  "amqp",
	6379:  "redis",
	8080:  "http-proxy",
	8081:  "http-alt",
	8443:  "https-alt",
	8888:  "http-alt",
	9000:  "cslistener",
	9200:  "elasticsearch",
	9300:  "elasticsearch-transport",
	11211: "memcached",
	27017: "mongodb",
	33128: "squid-alt",
}

// ServiceName returns the conventional service name for port, or "" if unknown
func ServiceName(port uint16) string {
	return knownServices[port]
}

// NewTarget validates ports and builds a Target. Duplicate ports are dropped,
// keeping the position of their first occurrence.
func NewTarget(ip net.IP, ports []int) (Target, error) {
	if ip == nil || ip.IsUnspecified() {
		return Target{}, ErrInvalidAddress
	}
	if len(ports) == 0 {
		return Target{}, ErrNoPorts
	}

	seen := make(map[int]struct{}, len(ports))
	unique := make([]uint16, 0, len(ports))
	for _, p := range ports {
		if p < 1 || p > 65535 {
			return Target{}, fmt.Errorf("%w: %d", ErrInvalidPort, p)
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		unique = append(unique, uint16(p))
	}

	return Target{IP: ip, Ports: unique}, nil
}

// validate checks a Target that may have been built by hand
func (t Target) validate() error {
	if t.IP == nil || t.IP.IsUnspecified() {
		return ErrInvalidAddress
	}
	if len(t.Ports) == 0 {
		return ErrNoPorts
	}
	seen := make(map[uint16]struct{}, len(t.Ports))
	for _, p := range t.Ports {
		if p == 0 {
			return fmt.Errorf("%w: %d", ErrInvalidPort, p)
		}
		if _, dup := seen[p]; dup {
			return fmt.Errorf("%w: duplicate port %d", ErrInvalidPort, p)
		}
		seen[p] = struct{}{}
	}
	return nil
}
