package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is a saved scan definition loaded from YAML.
// Zero values mean "not set" and fall back to flags or environment defaults.
//
//	targets: [scanme.example.org, 10.0.0.0/30]
//	ports: "22,80,443,8000-8010"
//	concurrency: 200
//	timeout: 750ms
//	rate: 500
//	format: jsonl
//	output: scan.jsonl
//	ping: true
//	history: ~/.portsweep.db
type Profile struct {
	Targets     []string      `yaml:"targets"`
	Ports       string        `yaml:"ports"`
	Concurrency int           `yaml:"concurrency"`
	Timeout     time.Duration `yaml:"timeout"`
	Rate        int           `yaml:"rate"`
	Output      string        `yaml:"output"`
	Format      string        `yaml:"format"`
	OpenOnly    bool          `yaml:"open_only"`
	Ping        bool          `yaml:"ping"`
	SkipDown    bool          `yaml:"skip_down"`
	History     string        `yaml:"history"`
	DNSServers  []string      `yaml:"dns_servers"`
}

// LoadProfile reads a profile file. Unknown keys are rejected so that typos
// do not silently fall back to defaults.
func LoadProfile(path string) (*Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer file.Close()

	return DecodeProfile(file)
}

// DecodeProfile parses a profile from r
func DecodeProfile(r io.Reader) (*Profile, error) {
	var profile Profile

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&profile); err != nil {
		if errors.Is(err, io.EOF) {
			return &profile, nil
		}
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := profile.validate(); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (p *Profile) validate() error {
	if p.Concurrency < 0 {
		return fmt.Errorf("profile: concurrency must not be negative, got %d", p.Concurrency)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("profile: timeout must not be negative, got %s", p.Timeout)
	}
	if p.Rate < 0 {
		return fmt.Errorf("profile: rate must not be negative, got %d", p.Rate)
	}
	return nil
}
