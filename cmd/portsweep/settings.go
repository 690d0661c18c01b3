package main

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/velemoonkon/portsweep/pkg/config"
	"github.com/velemoonkon/portsweep/pkg/input"
	"github.com/velemoonkon/portsweep/pkg/output"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

// Flags holds the raw CLI flag values
type Flags struct {
	File        string
	Ports       string
	Concurrency int
	Timeout     time.Duration
	Rate        int

	Output   string
	Format   string
	OpenOnly bool

	Ping           bool
	PingPrivileged bool
	SkipDown       bool

	History    string
	DNSServers []string
	Quiet      bool
}

// Settings is the resolved configuration for one run
type Settings struct {
	Targets []string // IPs and hostnames, CIDRs already expanded
	Ports   []int
	Scanner scanner.Config

	Output   string
	Format   string
	OpenOnly bool

	Ping           bool
	PingPrivileged bool
	SkipDown       bool

	History    string
	DNSServers []string
}

// ResolveSettings merges flags, an optional profile and environment defaults.
// A flag the user set explicitly wins over the profile; a profile value wins
// over the flag default, which itself comes from the environment.
// changed reports whether a flag was set on the command line.
func ResolveSettings(args []string, flags Flags, profile *config.Profile, changed func(string) bool) (Settings, error) {
	if profile == nil {
		profile = &config.Profile{}
	}

	pickString := func(name, flagVal, profileVal string) string {
		if changed(name) || profileVal == "" {
			return flagVal
		}
		return profileVal
	}
	pickInt := func(name string, flagVal, profileVal int) int {
		if changed(name) || profileVal == 0 {
			return flagVal
		}
		return profileVal
	}
	pickBool := func(name string, flagVal, profileVal bool) bool {
		if changed(name) {
			return flagVal
		}
		return flagVal || profileVal
	}

	s := Settings{
		Output:         pickString("output", flags.Output, profile.Output),
		Format:         strings.ToLower(pickString("format", flags.Format, profile.Format)),
		OpenOnly:       pickBool("open-only", flags.OpenOnly, profile.OpenOnly),
		Ping:           pickBool("ping", flags.Ping, profile.Ping),
		PingPrivileged: flags.PingPrivileged,
		SkipDown:       pickBool("skip-down", flags.SkipDown, profile.SkipDown),
		History:        pickString("history", flags.History, profile.History),
		DNSServers:     flags.DNSServers,
	}
	if !changed("dns-server") && len(profile.DNSServers) > 0 {
		s.DNSServers = profile.DNSServers
	}

	timeout := flags.Timeout
	if !changed("timeout") && profile.Timeout > 0 {
		timeout = profile.Timeout
	}
	s.Scanner = scanner.Config{
		Concurrency: pickInt("concurrency", flags.Concurrency, profile.Concurrency),
		Timeout:     timeout,
		RateLimit:   pickInt("rate", flags.Rate, profile.Rate),
		Quiet:       flags.Quiet,
	}
	if s.Scanner.Concurrency <= 0 {
		return Settings{}, fmt.Errorf("%w: got %d", scanner.ErrInvalidConcurrency, s.Scanner.Concurrency)
	}
	if s.Scanner.Timeout <= 0 {
		return Settings{}, fmt.Errorf("%w: got %s", scanner.ErrInvalidTimeout, s.Scanner.Timeout)
	}

	if !slices.Contains(output.Formats, s.Format) {
		return Settings{}, fmt.Errorf("%w: %q", output.ErrUnknownFormat, s.Format)
	}
	if s.SkipDown && !s.Ping {
		return Settings{}, errors.New("--skip-down requires --ping")
	}

	ports, err := input.ParsePorts(pickString("ports", flags.Ports, profile.Ports))
	if err != nil {
		return Settings{}, fmt.Errorf("invalid ports: %w", err)
	}
	s.Ports = ports

	targets, err := resolveTargets(args, flags.File, profile.Targets)
	if err != nil {
		return Settings{}, err
	}
	s.Targets = targets

	return s, nil
}

// resolveTargets reads targets from args and the targets file, falling back
// to the profile when neither is given
func resolveTargets(args []string, file string, profileTargets []string) ([]string, error) {
	var targets []string

	if file != "" {
		fromFile, err := input.ParseFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read targets: %w", err)
		}
		targets = append(targets, fromFile...)
	}

	if len(args) == 0 && file == "" {
		args = profileTargets
	}
	fromArgs, err := input.ParseTargets(args)
	if err != nil {
		return nil, err
	}
	targets = append(targets, fromArgs...)

	if len(targets) == 0 {
		return nil, errors.New("no targets: pass hosts as arguments, -f file, or targets in --profile")
	}
	return targets, nil
}
