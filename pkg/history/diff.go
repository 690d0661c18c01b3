package history

import "github.com/velemoonkon/portsweep/pkg/scanner"

// Change is a port whose status differs between two scans of a host.
// An empty From means the port was not scanned before; an empty To means
// it was not scanned this time.
type Change struct {
	Port uint16         `json:"port"`
	From scanner.Status `json:"from,omitzero"`
	To   scanner.Status `json:"to,omitzero"`
}

// Diff compares two reports for the same host. Changes follow the port order
// of cur, then ports only present in prev.
func Diff(prev, cur *scanner.ScanReport) []Change {
	before := make(map[uint16]scanner.Status, len(prev.Results))
	for _, res := range prev.Results {
		before[res.Port] = res.Status
	}

	var changes []Change
	seen := make(map[uint16]struct{}, len(cur.Results))
	for _, res := range cur.Results {
		seen[res.Port] = struct{}{}
		if old, ok := before[res.Port]; !ok || old != res.Status {
			changes = append(changes, Change{Port: res.Port, From: old, To: res.Status})
		}
	}
	for _, res := range prev.Results {
		if _, ok := seen[res.Port]; !ok {
			changes = append(changes, Change{Port: res.Port, From: res.Status})
		}
	}
	return changes
}
