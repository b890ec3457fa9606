package split

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mt4110/rec-split/internal/media"
)

type stubDetector struct {
	points []media.ScenePoint
	err    error
	calls  int
	minGap float64
}

func (s *stubDetector) Detect(_ context.Context, _ string, _ float64, minGap float64) ([]media.ScenePoint, error) {
	s.calls++
	s.minGap = minGap
	return s.points, s.err
}

type span struct{ start, end float64 }

func spans(ranges []SegmentRange) []span {
	out := make([]span, len(ranges))
	for i, r := range ranges {
		out[i] = span{r.Start, r.End}
	}
	return out
}

func assertContiguous(t *testing.T, ranges []SegmentRange, total float64) {
	t.Helper()
	require.NotEmpty(t, ranges)
	assert.Equal(t, 0.0, ranges[0].Start)
	assert.InDelta(t, total, ranges[len(ranges)-1].End, 1e-9)
	sum := 0.0
	for i, r := range ranges {
		assert.Equal(t, i, r.Index)
		assert.Less(t, r.Start, r.End, "range %d", i)
		if i > 0 {
			assert.Equal(t, ranges[i-1].End, r.Start, "gap before range %d", i)
		}
		sum += r.Length()
	}
	assert.InDelta(t, total, sum, 1e-6)
}

func plan(t *testing.T, total float64, s Strategy) ([]SegmentRange, error) {
	t.Helper()
	p := &Planner{}
	return p.Plan(context.Background(), "in.mp4", total, s)
}

func TestPlan_Scenarios(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		strategy Strategy
		want     []span
	}{
		{
			name:     "fixed interval",
			total:    90,
			strategy: TimeInterval{Duration: 30},
			want:     []span{{0, 30}, {30, 60}, {60, 90}},
		},
		{
			name:     "count",
			total:    100,
			strategy: TimeInterval{Count: 4},
			want:     []span{{0, 25}, {25, 50}, {50, 75}, {75, 100}},
		},
		{
			name:     "manual",
			total:    50,
			strategy: Manual{Points: []float64{10, 40}},
			want:     []span{{0, 10}, {10, 40}, {40, 50}},
		},
		{
			name:     "fixed interval with remainder",
			total:    100,
			strategy: TimeInterval{Duration: 30},
			want:     []span{{0, 30}, {30, 60}, {60, 90}, {90, 100}},
		},
		{
			name:     "count wins over duration",
			total:    60,
			strategy: TimeInterval{Duration: 5, Count: 2},
			want:     []span{{0, 30}, {30, 60}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ranges, err := plan(t, tt.total, tt.strategy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spans(ranges))
			assertContiguous(t, ranges, tt.total)
		})
	}
}

func TestPlan_CountProperty(t *testing.T) {
	for _, total := range []float64{0.5, 7, 59.94, 3600.123} {
		for count := 2; count <= 17; count++ {
			ranges, err := plan(t, total, TimeInterval{Count: count})
			require.NoError(t, err, "total=%v count=%d", total, count)
			assert.Len(t, ranges, count, "total=%v count=%d", total, count)
			assertContiguous(t, ranges, total)
		}
	}
}

func TestPlan_FixedIntervalProperty(t *testing.T) {
	cases := []struct{ total, interval float64 }{
		{90, 30}, {100, 30}, {10, 3}, {10, 0.7}, {3600, 600}, {61.5, 10}, {5, 4.99},
	}
	for _, c := range cases {
		ranges, err := plan(t, c.total, TimeInterval{Duration: c.interval})
		require.NoError(t, err, "%+v", c)

		want := int(math.Ceil(c.total / c.interval))
		assert.Len(t, ranges, want, "%+v", c)
		assertContiguous(t, ranges, c.total)

		for _, r := range ranges[:len(ranges)-1] {
			assert.InDelta(t, c.interval, r.Length(), 1e-9)
		}
		last := ranges[len(ranges)-1].Length()
		rem := math.Mod(c.total, c.interval)
		if rem < 1e-9 {
			rem = c.interval
		}
		assert.InDelta(t, rem, last, 1e-6, "%+v", c)
	}
}

func TestPlan_ManualIdempotent(t *testing.T) {
	points := []float64{1.5, 7, 12.25, 30}
	ranges, err := plan(t, 45, Manual{Points: points})
	require.NoError(t, err)

	var bounds []float64
	for _, r := range ranges {
		bounds = append(bounds, r.Start)
	}
	bounds = append(bounds, ranges[len(ranges)-1].End)
	assert.Equal(t, append(append([]float64{0}, points...), 45), bounds)
}

func TestPlan_ManualNormalization(t *testing.T) {
	// unsorted, duplicated, zero and beyond-the-end points
	ranges, err := plan(t, 50, Manual{Points: []float64{40, 10, 0, 10, 50, 75}})
	require.NoError(t, err)
	assert.Equal(t, []span{{0, 10}, {10, 40}, {40, 50}}, spans(ranges))
}

func TestPlan_NoSplitPoints(t *testing.T) {
	tests := []struct {
		name     string
		total    float64
		strategy Strategy
	}{
		{"interval equals duration", 30, TimeInterval{Duration: 30}},
		{"interval longer than duration", 30, TimeInterval{Duration: 45}},
		{"single part", 30, TimeInterval{Count: 1}},
		{"empty manual", 30, Manual{}},
		{"manual all out of range", 30, Manual{Points: []float64{30, 31}}},
		{"zero duration", 0, TimeInterval{Duration: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plan(t, tt.total, tt.strategy)
			assert.ErrorIs(t, err, media.ErrNoSplitPoints)
		})
	}
}

func TestPlan_InvalidStrategy(t *testing.T) {
	tests := []struct {
		name     string
		strategy Strategy
	}{
		{"nil", nil},
		{"zero interval", TimeInterval{}},
		{"negative interval", TimeInterval{Duration: -1}},
		{"negative count", TimeInterval{Duration: 10, Count: -2}},
		{"threshold above 1", Scene{Threshold: 1.5}},
		{"negative threshold", Scene{Threshold: -0.1}},
		{"negative gap", Scene{Threshold: 0.3, MinGap: -1}},
		{"negative manual point", Manual{Points: []float64{5, -1}}},
		{"NaN manual point", Manual{Points: []float64{math.NaN()}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plan(t, 100, tt.strategy)
			assert.ErrorIs(t, err, media.ErrInvalidStrategy)
		})
	}
}

func TestPlan_Scene(t *testing.T) {
	det := &stubDetector{points: []media.ScenePoint{
		{Time: 12.5, Confidence: 1}, {Time: 33, Confidence: 1}, {Time: 80, Confidence: 1},
	}}
	p := &Planner{Scenes: det}

	ranges, err := p.Plan(context.Background(), "in.mp4", 60, Scene{Threshold: 0.3})
	require.NoError(t, err)
	assert.Equal(t, []span{{0, 12.5}, {12.5, 33}, {33, 60}}, spans(ranges))
	assert.Equal(t, 2.0, det.minGap, "default debounce window")

	_, err = p.Plan(context.Background(), "in.mp4", 60, Scene{Threshold: 0.3, MinGap: 5})
	require.NoError(t, err)
	assert.Equal(t, 5.0, det.minGap)
}

func TestPlan_SceneEmptyAndFailing(t *testing.T) {
	p := &Planner{Scenes: &stubDetector{points: []media.ScenePoint{}}}
	_, err := p.Plan(context.Background(), "in.mp4", 60, Scene{Threshold: 0.3})
	assert.ErrorIs(t, err, media.ErrNoSplitPoints)

	boom := errors.New("boom")
	p = &Planner{Scenes: &stubDetector{err: boom}}
	_, err = p.Plan(context.Background(), "in.mp4", 60, Scene{Threshold: 0.3})
	assert.ErrorIs(t, err, boom)
}

func TestRanges_TrailingOnlyWhenNonEmpty(t *testing.T) {
	assert.Equal(t, []span{{0, 10}, {10, 20}}, spans(Ranges([]float64{10, 20}, 20)))
	assert.Equal(t, []span{{0, 10}, {10, 20}, {20, 25}}, spans(Ranges([]float64{10, 20}, 25)))
	assert.Equal(t, []span{{0, 25}}, spans(Ranges(nil, 25)))
}
