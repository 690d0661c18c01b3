package scanner

import (
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTarget(t *testing.T, ports ...int) Target {
	t.Helper()
	target, err := NewTarget(net.ParseIP("192.0.2.10"), ports)
	require.NoError(t, err)
	return target
}

func TestReportRecordAndFinalize(t *testing.T) {
	report := NewReport(testTarget(t, 443, 22, 80))

	assert.False(t, report.IsComplete())
	require.NoError(t, report.Record(newResult(80, StatusOpen, 0, "")))
	require.NoError(t, report.Record(newResult(443, StatusFiltered, 0, "")))

	_, err := report.Finalize()
	assert.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, []uint16{22}, report.Pending())

	require.NoError(t, report.Record(newResult(22, StatusClosed, 0, "")))
	assert.True(t, report.IsComplete())

	final, err := report.Finalize()
	require.NoError(t, err)
	require.Len(t, final.Results, 3)

	// Requested order, not completion order
	assert.Equal(t, uint16(443), final.Results[0].Port)
	assert.Equal(t, uint16(22), final.Results[1].Port)
	assert.Equal(t, uint16(80), final.Results[2].Port)
	assert.Empty(t, final.Unscanned)
	assert.Equal(t, "192.0.2.10", final.IP)
}

func TestReportRejectsDuplicate(t *testing.T) {
	report := NewReport(testTarget(t, 80))

	require.NoError(t, report.Record(newResult(80, StatusOpen, 0, "")))
	err := report.Record(newResult(80, StatusClosed, 0, ""))
	assert.ErrorIs(t, err, ErrDuplicateResult)

	// First result is kept
	final, err := report.Finalize()
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, final.Results[0].Status)
}

func TestReportRejectsUnexpectedPort(t *testing.T) {
	report := NewReport(testTarget(t, 80))

	err := report.Record(newResult(8080, StatusOpen, 0, ""))
	assert.ErrorIs(t, err, ErrUnexpectedPort)
	assert.Equal(t, 0, report.Len())
}

func TestReportSnapshot(t *testing.T) {
	report := NewReport(testTarget(t, 1, 2, 3, 4))
	require.NoError(t, report.Record(newResult(3, StatusOpen, 0, "")))
	require.NoError(t, report.Record(newResult(1, StatusClosed, 0, "")))

	snap := report.Snapshot()
	require.Len(t, snap.Results, 2)
	assert.Equal(t, uint16(1), snap.Results[0].Port)
	assert.Equal(t, uint16(3), snap.Results[1].Port)
	assert.Equal(t, []uint16{2, 4}, snap.Unscanned)
}

func TestReportConcurrentRecord(t *testing.T) {
	ports := make([]int, 500)
	for i := range ports {
		ports[i] = i + 1
	}
	report := NewReport(testTarget(t, ports...))

	var wg sync.WaitGroup
	for _, p := range ports {
		wg.Go(func() {
			assert.NoError(t, report.Record(newResult(uint16(p), StatusClosed, 0, "")))
		})
	}
	wg.Wait()

	assert.True(t, report.IsComplete())
	final, err := report.Finalize()
	require.NoError(t, err)
	assert.Len(t, final.Results, 500)
}

func TestScanReportHelpers(t *testing.T) {
	report := &ScanReport{Results: []Result{
		newResult(22, StatusOpen, 0, ""),
		newResult(23, StatusClosed, 0, ""),
		newResult(80, StatusOpen, 0, ""),
		newResult(81, StatusFiltered, 0, ""),
		newResult(82, StatusError, 0, "boom"),
	}}

	res, ok := report.Get(81)
	require.True(t, ok)
	assert.Equal(t, StatusFiltered, res.Status)

	_, ok = report.Get(9999)
	assert.False(t, ok)

	assert.Equal(t, []uint16{22, 80}, report.Open())
	assert.Equal(t, map[Status]int{
		StatusOpen:     2,
		StatusClosed:   1,
		StatusFiltered: 1,
		StatusError:    1,
	}, report.Counts())
}

func TestNewTarget(t *testing.T) {
	ip := net.ParseIP("10.0.0.1")

	target, err := NewTarget(ip, []int{80, 22, 80, 443, 22})
	require.NoError(t, err)
	assert.Equal(t, []uint16{80, 22, 443}, target.Ports)

	_, err = NewTarget(ip, nil)
	assert.ErrorIs(t, err, ErrNoPorts)

	_, err = NewTarget(ip, []int{80, 0})
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = NewTarget(ip, []int{65536})
	assert.ErrorIs(t, err, ErrInvalidPort)

	_, err = NewTarget(nil, []int{80})
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = NewTarget(net.IPv4zero, []int{80})
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "ssh", ServiceName(22))
	assert.Equal(t, "redis", ServiceName(6379))
	assert.Empty(t, ServiceName(41234))
}
