// Package split plans and executes the splitting of one video into
// several files: the Planner turns a Strategy into ranges, the Executor
// runs ffmpeg once per range and the Engine drives both for a Job.
package split

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
	"github.com/mt4110/rec-split/internal/probe"
	"github.com/mt4110/rec-split/internal/scene"
)

// Job is one split request.
type Job struct {
	Source    string
	Strategy  Strategy
	OutputDir string
	Format    string // output container extension, e.g. "mp4"
}

func (j Job) validate() error {
	if j.Source == "" {
		return fmt.Errorf("%w: source path is empty", media.ErrNotFound)
	}
	if j.OutputDir == "" {
		return fmt.Errorf("%w: output directory is empty", media.ErrIO)
	}
	if j.Format == "" || strings.ContainsAny(j.Format, `/\. `) {
		return fmt.Errorf("%w: output format %q", media.ErrUnsupportedFormat, j.Format)
	}
	if j.Strategy == nil {
		return fmt.Errorf("%w: no strategy", media.ErrInvalidStrategy)
	}
	return j.Strategy.Validate()
}

// Outcome is the result of one job. OutputFiles lists every segment
// that was written, in ordinal order, even when the job failed.
type Outcome struct {
	JobID       string        `json:"job_id"`
	Source      string        `json:"input"`
	Success     bool          `json:"success"`
	Planned     int           `json:"segments_planned"`
	OutputFiles []string      `json:"output_files"`
	Errors      []string      `json:"errors"`
	Elapsed     time.Duration `json:"-"`
}

// Progress is reported after each finished segment.
type Progress struct {
	JobID      string
	Current    int
	Total      int
	Message    string
	Percentage float64
}

// Options tune how an Engine extracts segments.
type Options struct {
	// Workers > 1 extracts independent segments concurrently.
	Workers int
	// ContinueOnError keeps extracting the remaining segments after a
	// failure instead of stopping at the first one.
	ContinueOnError bool
	// Progress, when set, is called after each segment.
	Progress func(Progress)
}

// Prober is what the engine needs from probe.Client.
type Prober interface {
	Probe(ctx context.Context, path string) (*media.MediaInfo, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// Engine runs at most one operation at a time. Separate engines share
// nothing and may run in parallel.
type Engine struct {
	mu       sync.Mutex
	prober   Prober
	detector SceneDetector
	planner  *Planner
	executor *Executor
	opts     Options
}

// New wires an engine around resolved ffmpeg/ffprobe paths.
func New(ffmpegBin, ffprobeBin string, runner ffexec.Runner, enc EncodeOptions, opts Options) *Engine {
	if runner == nil {
		runner = &ffexec.ExecRunner{}
	}
	return NewEngine(
		probe.New(ffprobeBin, runner),
		scene.New(ffmpegBin, runner),
		NewExecutor(ffmpegBin, runner, enc),
		opts,
	)
}

func NewEngine(prober Prober, detector SceneDetector, executor *Executor, opts Options) *Engine {
	return &Engine{
		prober:   prober,
		detector: detector,
		planner:  &Planner{Scenes: detector},
		executor: executor,
		opts:     opts,
	}
}

// Executor exposes the segment executor, e.g. to toggle DryRun.
func (e *Engine) Executor() *Executor {
	return e.executor
}

// Probe returns the metadata of path.
func (e *Engine) Probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.prober.Probe(ctx, path)
}

// DetectScenes returns the debounced scene changes of path. A zero
// minGap selects the default window.
func (e *Engine) DetectScenes(ctx context.Context, path string, threshold, minGap float64) ([]media.ScenePoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Scene{Threshold: threshold, MinGap: minGap}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := media.ValidateSource(path); err != nil {
		return nil, err
	}
	return e.detector.Detect(ctx, path, s.Threshold, s.minGap())
}

// ExtractFrame captures the frame at t seconds into outPath.
func (e *Engine) ExtractFrame(ctx context.Context, path string, t float64, outPath string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := media.ValidateSource(path); err != nil {
		return "", err
	}
	return e.executor.ExtractFrame(ctx, path, t, outPath)
}

// Run splits job.Source and re-encodes every segment.
//
// The returned Outcome is never nil. On failure the error is also
// recorded in Outcome.Errors and files already written are kept and
// listed.
func (e *Engine) Run(ctx context.Context, job Job) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run(ctx, job, e.executor.Extract)
}

// SplitBySceneCopy cuts source at its scene changes and stream-copies
// each segment. Faster than Run, but boundaries snap to keyframes.
func (e *Engine) SplitBySceneCopy(ctx context.Context, source string, threshold, minGap float64, outputDir, format string) (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	job := Job{
		Source:    source,
		Strategy:  Scene{Threshold: threshold, MinGap: minGap},
		OutputDir: outputDir,
		Format:    format,
	}
	return e.run(ctx, job, e.executor.ExtractCopy)
}

type extractFunc func(ctx context.Context, source string, r SegmentRange, outputDir, format string) (string, error)

func (e *Engine) run(ctx context.Context, job Job, extract extractFunc) (*Outcome, error) {
	started := time.Now()
	out := &Outcome{
		JobID:       uuid.NewString(),
		Source:      job.Source,
		OutputFiles: []string{},
		Errors:      []string{},
	}

	ranges, err := e.prepare(ctx, job)
	if err != nil {
		return e.finish(out, started, []error{err})
	}
	out.Planned = len(ranges)

	log.Printf("🔪 %s: %s -> %d セグメント", filepath.Base(job.Source), job.Strategy, len(ranges))

	files, errs := e.extractAll(ctx, out.JobID, job, ranges, extract)
	out.OutputFiles = append(out.OutputFiles, files...)
	return e.finish(out, started, errs)
}

// prepare validates the job, probes the source and plans the ranges.
// Nothing is extracted and no directory is created when it fails.
func (e *Engine) prepare(ctx context.Context, job Job) ([]SegmentRange, error) {
	if err := job.validate(); err != nil {
		return nil, err
	}
	if err := media.ValidateSource(job.Source); err != nil {
		return nil, err
	}

	info, err := e.prober.Probe(ctx, job.Source)
	if err != nil {
		return nil, err
	}
	total := info.Duration
	if total <= 0 {
		if total, err = e.prober.Duration(ctx, job.Source); err != nil {
			return nil, err
		}
	}

	ranges, err := e.planner.Plan(ctx, job.Source, total, job.Strategy)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(job.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create output directory %s: %w", media.ErrIO, job.OutputDir, err)
	}
	return ranges, nil
}

type segmentResult struct {
	path string
	err  error
	done bool
}

// extractAll returns the written paths in ordinal order and the errors
// in ordinal order.
func (e *Engine) extractAll(ctx context.Context, jobID string, job Job, ranges []SegmentRange, extract extractFunc) ([]string, []error) {
	results := make([]segmentResult, len(ranges))

	var mu sync.Mutex
	finished := 0
	report := func(r SegmentRange, res segmentResult) {
		mu.Lock()
		defer mu.Unlock()
		finished++
		if e.opts.Progress == nil {
			return
		}
		msg := fmt.Sprintf("segment %d/%d %.2fs-%.2fs", r.Index+1, len(ranges), r.Start, r.End)
		if res.err != nil {
			msg += " failed"
		}
		e.opts.Progress(Progress{
			JobID:      jobID,
			Current:    finished,
			Total:      len(ranges),
			Message:    msg,
			Percentage: float64(finished) / float64(len(ranges)) * 100,
		})
	}

	runOne := func(ctx context.Context, r SegmentRange) segmentResult {
		log.Printf("▶ セグメント %d/%d: %.2fs - %.2fs", r.Index+1, len(ranges), r.Start, r.End)
		path, err := extract(ctx, job.Source, r, job.OutputDir, job.Format)
		res := segmentResult{path: path, err: err, done: true}
		if err != nil {
			log.Printf("❌ セグメント %d 失敗: %v", r.Index+1, err)
		}
		report(r, res)
		return res
	}

	if e.opts.Workers <= 1 {
		for i, r := range ranges {
			if ctx.Err() != nil {
				break
			}
			results[i] = runOne(ctx, r)
			if results[i].err != nil && !e.opts.ContinueOnError {
				break
			}
		}
		return collect(results, ctx.Err())
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.opts.Workers)

	log.Printf("⚡️ %d個のセグメントを %d並列で処理中...", len(ranges), cap(sem))

	for i, r := range ranges {
		sem <- struct{}{}
		if poolCtx.Err() != nil {
			<-sem
			break
		}
		wg.Add(1)
		go func(i int, r SegmentRange) {
			defer func() {
				<-sem
				wg.Done()
			}()
			res := runOne(poolCtx, r)
			results[i] = res
			if res.err != nil && !e.opts.ContinueOnError {
				cancel()
			}
		}(i, r)
	}
	wg.Wait()

	return collect(results, ctx.Err())
}

// collect flattens per-segment results in ordinal order. Segments that
// stopped only because their context was cancelled are not reported on
// their own: a sibling's failure already explains them, and a caller
// cancellation (parentErr) is reported once.
func collect(results []segmentResult, parentErr error) ([]string, []error) {
	var files []string
	var errs []error
	for _, res := range results {
		switch {
		case !res.done:
		case res.err == nil:
			files = append(files, res.path)
		case errors.Is(res.err, context.Canceled) || errors.Is(res.err, context.DeadlineExceeded):
		default:
			errs = append(errs, res.err)
		}
	}
	if parentErr != nil {
		errs = append(errs, fmt.Errorf("split cancelled: %w", parentErr))
	}
	return files, errs
}

func (e *Engine) finish(out *Outcome, started time.Time, errs []error) (*Outcome, error) {
	out.Elapsed = time.Since(started)
	for _, err := range errs {
		out.Errors = append(out.Errors, err.Error())
	}
	out.Success = len(errs) == 0 && len(out.OutputFiles) == out.Planned

	logResult(out)

	switch {
	case len(errs) == 0:
		log.Printf("✅ 分割完了: %s -> %d ファイル (%.1fs)", filepath.Base(out.Source), len(out.OutputFiles), out.Elapsed.Seconds())
		return out, nil
	case len(errs) == 1:
		return out, errs[0]
	default:
		return out, errors.Join(errs...)
	}
}

// logResult writes one JSON line that the stats command aggregates.
func logResult(out *Outcome) {
	entry := struct {
		Type string `json:"type"`
		*Outcome
		DurationSec float64 `json:"duration_sec"`
		Timestamp   string  `json:"timestamp"`
	}{
		Type:        "split_result",
		Outcome:     out,
		DurationSec: out.Elapsed.Seconds(),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	if jsonBytes, err := json.Marshal(entry); err == nil {
		log.Println(string(jsonBytes))
	}
}
