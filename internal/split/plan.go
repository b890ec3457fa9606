package split

import (
	"context"
	"fmt"
	"sort"

	"github.com/mt4110/rec-split/internal/media"
	"github.com/mt4110/rec-split/internal/scene"
)

const defaultMinGap = scene.DefaultMinGap

// SegmentRange is one planned cut of the source, in seconds.
// Index is the zero-based position among the planned ranges.
type SegmentRange struct {
	Index int
	Start float64
	End   float64
}

// Length returns End - Start.
func (r SegmentRange) Length() float64 {
	return r.End - r.Start
}

// SceneDetector is what the planner needs from scene.Detector.
type SceneDetector interface {
	Detect(ctx context.Context, path string, threshold, minGap float64) ([]media.ScenePoint, error)
}

// Planner turns a Strategy into contiguous ranges. Only the Scene
// strategy touches the outside world, through Scenes.
type Planner struct {
	Scenes SceneDetector
}

// Plan returns ordered, contiguous ranges covering [0, total].
// It fails with media.ErrNoSplitPoints when the strategy yields no cut
// point strictly inside the source.
func (p *Planner) Plan(ctx context.Context, source string, total float64, s Strategy) ([]SegmentRange, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no strategy", media.ErrInvalidStrategy)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !(total > 0) {
		return nil, fmt.Errorf("%w: source duration is %v", media.ErrNoSplitPoints, total)
	}

	points, err := p.cutPoints(ctx, source, total, s)
	if err != nil {
		return nil, err
	}
	points = normalize(points, total)
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s over %.3fs", media.ErrNoSplitPoints, s, total)
	}
	return Ranges(points, total), nil
}

func (p *Planner) cutPoints(ctx context.Context, source string, total float64, s Strategy) ([]float64, error) {
	switch s := s.(type) {
	case TimeInterval:
		return IntervalPoints(total, s.Duration, s.Count), nil
	case Scene:
		if p.Scenes == nil {
			return nil, fmt.Errorf("%w: scene strategy needs a detector", media.ErrInvalidStrategy)
		}
		scenes, err := p.Scenes.Detect(ctx, source, s.Threshold, s.minGap())
		if err != nil {
			return nil, err
		}
		return SceneTimes(scenes), nil
	case Manual:
		return append([]float64(nil), s.Points...), nil
	default:
		return nil, fmt.Errorf("%w: %T", media.ErrInvalidStrategy, s)
	}
}

// IntervalPoints returns the cut points of a time split. With count > 0
// the source is divided into count equal parts (count-1 points);
// otherwise a point is placed every interval seconds while it stays
// below total.
func IntervalPoints(total, interval float64, count int) []float64 {
	var points []float64
	if count > 0 {
		width := total / float64(count)
		for i := 1; i < count; i++ {
			points = append(points, float64(i)*width)
		}
		return points
	}
	if !(interval > 0) {
		return nil
	}
	for k := 1; ; k++ {
		t := float64(k) * interval
		if t >= total {
			break
		}
		points = append(points, t)
	}
	return points
}

// SceneTimes extracts the timestamps of scenes.
func SceneTimes(scenes []media.ScenePoint) []float64 {
	points := make([]float64, 0, len(scenes))
	for _, sc := range scenes {
		points = append(points, sc.Time)
	}
	return points
}

// Ranges pairs each cut point with the previous one, the first range
// starting at 0, and appends a trailing range up to total when it is
// non-empty.
func Ranges(points []float64, total float64) []SegmentRange {
	ranges := make([]SegmentRange, 0, len(points)+1)
	start := 0.0
	for _, end := range points {
		ranges = append(ranges, SegmentRange{Index: len(ranges), Start: start, End: end})
		start = end
	}
	if start < total {
		ranges = append(ranges, SegmentRange{Index: len(ranges), Start: start, End: total})
	}
	return ranges
}

// normalize sorts the points, drops duplicates and keeps only those
// strictly inside (0, total).
func normalize(points []float64, total float64) []float64 {
	sorted := append([]float64(nil), points...)
	sort.Float64s(sorted)

	out := sorted[:0]
	for _, p := range sorted {
		if !(p > 0) || p >= total {
			continue
		}
		if len(out) > 0 && p == out[len(out)-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}
