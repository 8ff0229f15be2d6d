package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSnapshotFirstCallHasZeroRate(t *testing.T) {
	fakeNow := time.Unix(1000, 0)
	tr := NewTracker(func() time.Time { return fakeNow })

	rec := tr.Snapshot(10, 0, 0, 4, false, 0, false, 0)
	require.Equal(t, uint64(10), rec.EventCount)
	require.Equal(t, 0.0, rec.RateHz)
	require.Equal(t, 0.0, rec.TimeSinceLastS)
}

func TestSnapshotComputesRateAcrossCalls(t *testing.T) {
	base := time.Unix(1000, 0)
	cur := base
	tr := NewTracker(func() time.Time { return cur })

	tr.Snapshot(0, 0, 0, 4, false, 0, false, 0)

	cur = base.Add(2 * time.Second)
	rec := tr.Snapshot(20, 0, 0, 4, false, 0, false, 0)

	require.InDelta(t, 10.0, rec.RateHz, 1e-9)
	require.InDelta(t, 2.0, rec.TimeSinceLastS, 1e-9)
}

func TestSnapshotAverageDeadtime(t *testing.T) {
	base := time.Unix(1000, 0)
	cur := base
	tr := NewTracker(func() time.Time { return cur })

	tr.Snapshot(0, 0, 0, 4, false, 0, false, 0)

	cur = base.Add(time.Second)
	rec := tr.Snapshot(10, 0, 0, 4, false, 0, false, 5.0)

	require.InDelta(t, 0.5, rec.AverageDeadtimeS, 1e-9)
}

func TestSnapshotPassesThroughFlags(t *testing.T) {
	tr := NewTracker(nil)
	rec := tr.Snapshot(1, 2, 3, 4, true, 5, true, 0)

	require.True(t, rec.FlushReceived)
	require.True(t, rec.Paused)
	require.Equal(t, uint64(5), rec.PausedCount)
	require.Equal(t, uint64(2), rec.OverwriteCount)
	require.Equal(t, uint64(3), rec.FilledCount)
	require.Equal(t, uint64(4), rec.EmptyCount)
}
