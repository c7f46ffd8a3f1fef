package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	formcoach "github.com/lucasjlepore/form-analyzer"
	"github.com/lucasjlepore/form-analyzer/posesynth"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestManagerObservesArena(t *testing.T) {
	mgr, reg := NewTestManagerAndRegistry()
	arena := formcoach.NewArena(nil, formcoach.WithObserver(mgr))

	id, err := arena.Open(formcoach.Squat)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(mgr.GaugeActiveSessions))

	frames, err := posesynth.Set(nil, formcoach.Squat, posesynth.SetOptions{Reps: 2, FramesPerRep: 4})
	require.NoError(t, err)
	partial := posesynth.Frame(posesynth.Standing(), 10_000)
	partial.Pose = partial.Pose[:5]
	frames = append(frames, partial)

	for _, f := range frames {
		_, err := arena.Analyze(id, f)
		require.NoError(t, err)
	}

	summary, err := arena.Close(id)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalReps)

	squat := formcoach.Squat.String()
	assert.Equal(t, float64(2), testutil.ToFloat64(mgr.CounterReps.WithLabelValues(squat)))
	assert.Equal(t, float64(1), testutil.ToFloat64(mgr.CounterFrames.WithLabelValues(squat, OutcomeRejected)))
	handled := testutil.ToFloat64(mgr.CounterFrames.WithLabelValues(squat, OutcomeAnalyzed)) +
		testutil.ToFloat64(mgr.CounterFrames.WithLabelValues(squat, OutcomeGated))
	assert.Equal(t, float64(len(frames)-1), handled)
	assert.Equal(t, float64(0), testutil.ToFloat64(mgr.GaugeActiveSessions))
	assert.Equal(t, float64(1), testutil.ToFloat64(mgr.CounterSessionsClosed.WithLabelValues(squat)))
	assert.Equal(t, 1, testutil.CollectAndCount(mgr.HistFormScore, "formcoach_test_rep_form_score"))

	path := filepath.Join(t.TempDir(), "formcoach.prom")
	require.NoError(t, WriteTextfile(reg, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `formcoach_test_reps_total{exercise="squat"} 2`)
}

func TestManagerCountsDrops(t *testing.T) {
	mgr := NewTestManager()
	mgr.FrameDropped(formcoach.PushUp)
	mgr.FrameDropped(formcoach.PushUp)
	assert.Equal(t, float64(2), testutil.ToFloat64(mgr.CounterFramesDropped.WithLabelValues(formcoach.PushUp.String())))
}
