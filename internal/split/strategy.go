package split

import (
	"fmt"
	"math"

	"github.com/mt4110/rec-split/internal/media"
)

// Strategy is the closed set of ways to cut a source: TimeInterval,
// Scene or Manual.
type Strategy interface {
	// Validate checks the parameters once, before any planning.
	Validate() error
	String() string
	isStrategy()
}

// TimeInterval cuts every Duration seconds, or into Count equal parts
// when Count is set. Count 0 means unset.
type TimeInterval struct {
	Duration float64
	Count    int
}

// Scene cuts at detected scene changes. MinGap 0 selects the default
// debounce window.
type Scene struct {
	Threshold float64
	MinGap    float64
}

// Manual cuts at caller supplied timestamps, in seconds.
type Manual struct {
	Points []float64
}

func (TimeInterval) isStrategy() {}
func (Scene) isStrategy()        {}
func (Manual) isStrategy()       {}

func (s TimeInterval) Validate() error {
	if s.Count < 0 {
		return fmt.Errorf("%w: count must not be negative, got %d", media.ErrInvalidStrategy, s.Count)
	}
	if s.Count == 0 && !(s.Duration > 0) {
		return fmt.Errorf("%w: interval must be > 0, got %v", media.ErrInvalidStrategy, s.Duration)
	}
	if math.IsInf(s.Duration, 0) || math.IsNaN(s.Duration) {
		return fmt.Errorf("%w: interval must be finite", media.ErrInvalidStrategy)
	}
	return nil
}

func (s Scene) Validate() error {
	if !(s.Threshold >= 0 && s.Threshold <= 1) {
		return fmt.Errorf("%w: threshold must be within [0, 1], got %v", media.ErrInvalidStrategy, s.Threshold)
	}
	if !(s.MinGap >= 0) || math.IsInf(s.MinGap, 0) {
		return fmt.Errorf("%w: min gap must be a finite value >= 0, got %v", media.ErrInvalidStrategy, s.MinGap)
	}
	return nil
}

func (s Manual) Validate() error {
	for i, p := range s.Points {
		if !(p >= 0) || math.IsInf(p, 0) {
			return fmt.Errorf("%w: point %d (%v) must be a finite value >= 0", media.ErrInvalidStrategy, i, p)
		}
	}
	return nil
}

func (s TimeInterval) String() string {
	if s.Count > 0 {
		return fmt.Sprintf("time(count=%d)", s.Count)
	}
	return fmt.Sprintf("time(every %gs)", s.Duration)
}

func (s Scene) String() string {
	return fmt.Sprintf("scene(threshold=%g, min-gap=%gs)", s.Threshold, s.minGap())
}

func (s Manual) String() string {
	return fmt.Sprintf("manual(%d points)", len(s.Points))
}

func (s Scene) minGap() float64 {
	if s.MinGap == 0 {
		return defaultMinGap
	}
	return s.MinGap
}
