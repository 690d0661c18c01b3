package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/velemoonkon/portsweep/pkg/scanner"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func report(id, ip string, results ...scanner.Result) *scanner.ScanReport {
	return &scanner.ScanReport{ScanID: id, IP: ip, ScanTimeMs: 10, Results: results}
}

func res(port uint16, status scanner.Status) scanner.Result {
	return scanner.Result{Port: port, Status: status}
}

func TestStoreSaveAndLatest(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Latest("192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)

	first := report("scan-1", "192.0.2.1", res(22, scanner.StatusOpen), res(80, scanner.StatusClosed))
	second := report("scan-2", "192.0.2.1", res(22, scanner.StatusOpen), res(80, scanner.StatusOpen))
	other := report("scan-3", "192.0.2.2", res(443, scanner.StatusFiltered))

	require.NoError(t, s.Save(first))
	require.NoError(t, s.Save(second))
	require.NoError(t, s.Save(other))

	got, ok, err := s.Latest("192.0.2.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "scan-2", got.ScanID)
	assert.Equal(t, second.Results, got.Results)

	got, ok, err = s.Latest("192.0.2.2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "scan-3", got.ScanID)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestStoreRejectsPartialReport(t *testing.T) {
	s := openStore(t)

	partial := report("scan-1", "192.0.2.1", res(22, scanner.StatusOpen))
	partial.Unscanned = []uint16{80}
	assert.ErrorIs(t, s.Save(partial), ErrPartialReport)

	assert.Error(t, s.Save(report("", "192.0.2.1")))

	_, ok, err := s.Latest("192.0.2.1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStorePersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(report("scan-1", "192.0.2.1", res(22, scanner.StatusOpen))))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	got, ok, err := s.Latest("192.0.2.1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint16{22}, got.Open())
}

func TestDiff(t *testing.T) {
	prev := report("a", "192.0.2.1",
		res(22, scanner.StatusOpen),
		res(80, scanner.StatusClosed),
		res(443, scanner.StatusOpen),
		res(8080, scanner.StatusFiltered),
	)
	cur := report("b", "192.0.2.1",
		res(22, scanner.StatusOpen),
		res(80, scanner.StatusOpen),
		res(443, scanner.StatusFiltered),
		res(3306, scanner.StatusClosed),
	)

	assert.Equal(t, []Change{
		{Port: 80, From: scanner.StatusClosed, To: scanner.StatusOpen},
		{Port: 443, From: scanner.StatusOpen, To: scanner.StatusFiltered},
		{Port: 3306, To: scanner.StatusClosed},
		{Port: 8080, From: scanner.StatusFiltered},
	}, Diff(prev, cur))
}

func TestDiffIdentical(t *testing.T) {
	r := report("a", "192.0.2.1", res(22, scanner.StatusOpen), res(80, scanner.StatusClosed))
	assert.Empty(t, Diff(r, r))
}
