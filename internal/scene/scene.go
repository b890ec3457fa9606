// Package scene finds scene changes with ffmpeg's scene score filter.
//
// ffmpeg is run with select='gt(scene,T)',showinfo and its stderr is
// scanned for showinfo lines; every selected frame reports a pts_time.
package scene

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
)

// DefaultMinGap is the debounce window used when the caller leaves it unset.
const DefaultMinGap = 2.0

const marker = "pts_time:"

type Detector struct {
	FFmpegBin string
	Runner    ffexec.Runner
}

func New(ffmpegBin string, runner ffexec.Runner) *Detector {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if runner == nil {
		runner = &ffexec.ExecRunner{}
	}
	return &Detector{FFmpegBin: ffmpegBin, Runner: runner}
}

// Args returns the ffmpeg argument vector for analyzing path.
func Args(path string, threshold float64) []string {
	return []string{
		"-hide_banner", "-nostats",
		"-i", path,
		"-vf", fmt.Sprintf("select='gt(scene,%s)',showinfo", strconv.FormatFloat(threshold, 'f', -1, 64)),
		"-f", "null",
		"-",
	}
}

// Detect returns the debounced scene changes of path. An empty result is
// not an error; only a failure to start ffmpeg is.
func (d *Detector) Detect(ctx context.Context, path string, threshold, minGap float64) ([]media.ScenePoint, error) {
	res, err := d.Runner.Run(ctx, d.FFmpegBin, Args(path, threshold)...)
	if err != nil {
		return nil, fmt.Errorf("%w: scene analysis of %q: %w", media.ErrProbeFailed, path, err)
	}
	if !res.OK() {
		log.Printf("⚠️ scene analysis exited with %d, using events read so far: %s", res.ExitCode, path)
	}

	points, err := ParseEvents(bytes.NewReader(res.Stderr), minGap)
	if err != nil {
		log.Printf("⚠️ scene events unreadable after %d points, using those: %s: %v", len(points), path, err)
	}
	return points, nil
}

// ParseEvents scans showinfo output line by line. The first number after
// the first pts_time: marker of a line is a candidate; it is accepted
// only when it lies at least minGap after the last accepted time, which
// starts at 0. On a read error the points accepted so far are returned
// with the error.
func ParseEvents(r io.Reader, minGap float64) ([]media.ScenePoint, error) {
	points := []media.ScenePoint{}
	last := 0.0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		t, ok := candidate(sc.Text())
		if !ok {
			continue
		}
		if t-last >= minGap && (len(points) == 0 || t > last) {
			points = append(points, media.ScenePoint{Time: t, Confidence: 1.0})
			last = t
		}
	}
	return points, sc.Err()
}

func candidate(line string) (float64, bool) {
	i := strings.Index(line, marker)
	if i < 0 {
		return 0, false
	}
	rest := strings.TrimLeft(line[i+len(marker):], " \t")

	end := 0
	for end < len(rest) && strings.IndexByte("0123456789.-+eE", rest[end]) >= 0 {
		end++
	}
	t, err := strconv.ParseFloat(rest[:end], 64)
	if err != nil || t < 0 {
		return 0, false
	}
	return t, true
}
