package input

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePorts(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []int
		wantErr bool
	}{
		{
			name: "Single port",
			spec: "22",
			want: []int{22},
		},
		{
			name: "List keeps order",
			spec: "443,22,80",
			want: []int{443, 22, 80},
		},
		{
			name: "Range",
			spec: "8000-8003",
			want: []int{8000, 8001, 8002, 8003},
		},
		{
			name: "Mixed with spaces",
			spec: " 22, 80 ,8080-8081 ",
			want: []int{22, 80, 8080, 8081},
		},
		{
			name: "Duplicates dropped at first occurrence",
			spec: "80,22,80,21-23",
			want: []int{80, 22, 21, 23},
		},
		{
			name: "Bounds",
			spec: "1,65535",
			want: []int{1, 65535},
		},
		{
			name:    "Empty",
			spec:    "  ",
			wantErr: true,
		},
		{
			name:    "Zero port",
			spec:    "0",
			wantErr: true,
		},
		{
			name:    "Port too large",
			spec:    "65536",
			wantErr: true,
		},
		{
			name:    "Reversed range",
			spec:    "90-80",
			wantErr: true,
		},
		{
			name:    "Empty token",
			spec:    "22,,80",
			wantErr: true,
		},
		{
			name:    "Not a number",
			spec:    "http",
			wantErr: true,
		},
		{
			name:    "Open ended range",
			spec:    "1000-",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ports, err := ParsePorts(tt.spec)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, ports)
			}
		})
	}
}

func TestParsePortsEmptySentinel(t *testing.T) {
	_, err := ParsePorts("")
	assert.ErrorIs(t, err, ErrEmptyPortSpec)
}

func TestParseTargets(t *testing.T) {
	tests := []struct {
		name      string
		targets   []string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "Single IP",
			targets:   []string{"192.168.1.1"},
			wantCount: 1,
		},
		{
			name:      "Hostname",
			targets:   []string{"scanme.example.org"},
			wantCount: 1,
		},
		{
			name:      "Multiple comma-separated",
			targets:   []string{"192.168.1.1,example.com,::1"},
			wantCount: 3,
		},
		{
			name:      "Small CIDR",
			targets:   []string{"192.168.1.0/30"},
			wantCount: 4,
		},
		{
			name:      "Mixed IP and CIDR",
			targets:   []string{"192.168.1.1", "10.0.0.0/30"},
			wantCount: 5,
		},
		{
			name:    "Malformed address",
			targets: []string{"999.1.1.1"},
			wantErr: true,
		},
		{
			name:    "Bad hostname characters",
			targets: []string{"bad_host!"},
			wantErr: true,
		},
		{
			name:    "Invalid CIDR",
			targets: []string{"192.168.1.0/99"},
			wantErr: true,
		},
		{
			name:    "CIDR too large",
			targets: []string{"10.0.0.0/8"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseTargets(tt.targets)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, hosts, tt.wantCount)
			}
		})
	}
}

func TestExpandCIDR(t *testing.T) {
	tests := []struct {
		name      string
		cidr      string
		wantCount int
		wantErr   bool
	}{
		{name: "/32 single IP", cidr: "192.168.1.1/32", wantCount: 1},
		{name: "/29 eight IPs", cidr: "10.0.0.0/29", wantCount: 8},
		{name: "/24 256 IPs", cidr: "172.16.0.0/24", wantCount: 256},
		{name: "Invalid CIDR format", cidr: "192.168.1.1/", wantErr: true},
		{name: "Invalid CIDR range", cidr: "192.168.1.1/33", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ips, err := ExpandCIDR(tt.cidr)

			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, ips, tt.wantCount)
			}
		})
	}
}

func TestIPRangeStopsEarly(t *testing.T) {
	seq, err := IPRange("10.1.0.0/24")
	require.NoError(t, err)

	var got []string
	for ip := range seq {
		got = append(got, ip.String())
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, []string{"10.1.0.0", "10.1.0.1", "10.1.0.2"}, got)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "targets.txt")

	content := `# Targets
192.168.1.1
db.internal.example

10.0.0.0/30
# Comment line
  192.168.1.3
`
	require.NoError(t, os.WriteFile(valid, []byte(content), 0o600))

	t.Run("Valid file", func(t *testing.T) {
		hosts, err := ParseFile(valid)
		require.NoError(t, err)
		// 2 IPs + 1 hostname + 4 from /30
		assert.Len(t, hosts, 7)
		assert.Equal(t, "db.internal.example", hosts[1])
	})

	t.Run("Non-existent file", func(t *testing.T) {
		_, err := ParseFile(filepath.Join(dir, "missing.txt"))
		assert.Error(t, err)
	})

	invalid := filepath.Join(dir, "invalid.txt")
	require.NoError(t, os.WriteFile(invalid, []byte("10.0.0.1\n300.1.1.1\n"), 0o600))

	t.Run("Invalid target reports line", func(t *testing.T) {
		_, err := ParseFile(invalid)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestIncrementIP(t *testing.T) {
	tests := []struct {
		name    string
		startIP string
		want    string
	}{
		{name: "Simple increment", startIP: "192.168.1.1", want: "192.168.1.2"},
		{name: "Rollover last octet", startIP: "192.168.1.255", want: "192.168.2.0"},
		{name: "Rollover second octet", startIP: "192.168.255.255", want: "192.169.0.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ip := net.ParseIP(tt.startIP).To4()
			incrementIP(ip)
			assert.Equal(t, tt.want, ip.String())
		})
	}
}
