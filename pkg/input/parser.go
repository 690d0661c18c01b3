package input

import (
	"bufio"
	"errors"
	"fmt"
	"iter"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrEmptyPortSpec is returned for a blank port specification
var ErrEmptyPortSpec = errors.New("empty port spec")

// maxHostBits caps CIDR expansion at 65536 addresses per target
const maxHostBits = 16

// ParsePorts parses a port specification and returns ports in the order
// given, duplicates removed.
// Supported forms:
//   - single: "22"
//   - list: "22,80,443"
//   - range: "1-1024"
//   - mixed: "22,80,8000-8100"
func ParsePorts(spec string) ([]int, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, ErrEmptyPortSpec
	}

	var ports []int
	seen := make(map[int]struct{})
	add := func(p int) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		ports = append(ports, p)
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			return nil, fmt.Errorf("invalid empty token in port spec %q", spec)
		}

		lo, hi, isRange := strings.Cut(part, "-")
		if !isRange {
			p, err := parsePort(part)
			if err != nil {
				return nil, err
			}
			add(p)
			continue
		}

		start, err := parsePort(lo)
		if err != nil {
			return nil, err
		}
		end, err := parsePort(hi)
		if err != nil {
			return nil, err
		}
		if start > end {
			return nil, fmt.Errorf("invalid port range %s: start greater than end", part)
		}
		for p := start; p <= end; p++ {
			add(p)
		}
	}

	return ports, nil
}

func parsePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", p)
	}
	return p, nil
}

// ParseTargets parses command-line targets (hostnames, IPs, CIDRs,
// comma-separated). CIDRs are expanded to individual addresses; hostnames
// are returned unresolved.
func ParseTargets(targets []string) ([]string, error) {
	var hosts []string

	for _, target := range targets {
		for _, part := range strings.Split(target, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			expanded, err := parseTarget(part)
			if err != nil {
				return nil, err
			}
			hosts = append(hosts, expanded...)
		}
	}

	return hosts, nil
}

// ParseFile reads targets from a file (one per line, # comments allowed)
func ParseFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var hosts []string
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		expanded, err := parseTarget(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		hosts = append(hosts, expanded...)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}

	return hosts, nil
}

func parseTarget(s string) ([]string, error) {
	if strings.Contains(s, "/") {
		_, ipnet, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %s: %w", s, err)
		}
		if ones, bits := ipnet.Mask.Size(); bits-ones > maxHostBits {
			return nil, fmt.Errorf("CIDR %s too large: at most /%d for this address family", s, bits-maxHostBits)
		}
		seq, err := IPRange(s)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %s: %w", s, err)
		}
		var hosts []string
		for ip := range seq {
			hosts = append(hosts, ip.String())
		}
		return hosts, nil
	}

	if net.ParseIP(s) != nil || isHostname(s) {
		return []string{s}, nil
	}
	return nil, fmt.Errorf("invalid target: %s", s)
}

// isHostname accepts RFC 1123 style names
func isHostname(s string) bool {
	s = strings.TrimSuffix(s, ".")
	if s == "" || len(s) > 253 {
		return false
	}
	// A numeric final label is a malformed address, not a name
	if _, err := strconv.Atoi(s[strings.LastIndex(s, ".")+1:]); err == nil {
		return false
	}
	for label := range strings.SplitSeq(s, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, c := range label {
			if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-') {
				return false
			}
		}
	}
	return true
}

// IPRange returns an iterator over IPs in a CIDR range
// This enables lazy evaluation and streaming without allocating the full slice
// Example: for ip := range IPRange("192.168.1.0/24") { process(ip) }
func IPRange(cidr string) (iter.Seq[net.IP], error) {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, err
	}

	return func(yield func(net.IP) bool) {
		for currentIP := ip.Mask(ipnet.Mask); ipnet.Contains(currentIP); incrementIP(currentIP) {
			// Copy, since currentIP is mutated in place
			newIP := make(net.IP, len(currentIP))
			copy(newIP, currentIP)

			if !yield(newIP) {
				return
			}
		}
	}, nil
}

// ExpandCIDR expands a CIDR range into individual IPs
// For streaming use cases, prefer IPRange() to avoid allocating the full slice
func ExpandCIDR(cidr string) ([]net.IP, error) {
	seq, err := IPRange(cidr)
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}

// incrementIP increments an IP address by one
func incrementIP(ip net.IP) {
	for j := len(ip) - 1; j >= 0; j-- {
		ip[j]++
		if ip[j] > 0 {
			break
		}
	}
}
