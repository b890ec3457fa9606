package split

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
)

// EncodeOptions are the re-encode settings of the extract path.
type EncodeOptions struct {
	VideoCodec string
	AudioCodec string
	Preset     string
	CRF        int
}

func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Preset:     "fast",
		CRF:        23,
	}
}

// Executor runs one ffmpeg process per segment.
type Executor struct {
	FFmpegBin string
	Runner    ffexec.Runner
	Encode    EncodeOptions
	// DryRun logs the command line and reports the output path without
	// running ffmpeg.
	DryRun bool
}

func NewExecutor(ffmpegBin string, runner ffexec.Runner, enc EncodeOptions) *Executor {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if runner == nil {
		runner = &ffexec.ExecRunner{}
	}
	def := DefaultEncodeOptions()
	if enc.VideoCodec == "" {
		enc.VideoCodec = def.VideoCodec
	}
	if enc.AudioCodec == "" {
		enc.AudioCodec = def.AudioCodec
	}
	if enc.Preset == "" {
		enc.Preset = def.Preset
	}
	if enc.CRF <= 0 {
		enc.CRF = def.CRF
	}
	return &Executor{FFmpegBin: ffmpegBin, Runner: runner, Encode: enc}
}

// OutputName is "<source-stem>_<NNN>.<format>" with NNN = ordinal+1.
func OutputName(source string, ordinal int, format string) string {
	return fmt.Sprintf("%s_%03d.%s", stem(source), ordinal+1, format)
}

// SceneOutputName names the stream-copy outputs of SplitBySceneCopy.
func SceneOutputName(source string, ordinal int, format string) string {
	return fmt.Sprintf("%s_scene_%03d.%s", stem(source), ordinal+1, format)
}

func stem(source string) string {
	base := filepath.Base(source)
	if s := strings.TrimSuffix(base, filepath.Ext(base)); s != "" {
		return s
	}
	return "segment"
}

// ExtractArgs builds the re-encode argument vector. -ss comes before -i
// for a fast input seek; -t carries the segment length.
func (e *Executor) ExtractArgs(source string, r SegmentRange, outPath string) []string {
	start, length := window(r)
	return []string{
		"-y",
		"-ss", start,
		"-i", source,
		"-t", length,
		"-c:v", e.Encode.VideoCodec,
		"-c:a", e.Encode.AudioCodec,
		"-preset", e.Encode.Preset,
		"-crf", strconv.Itoa(e.Encode.CRF),
		"-avoid_negative_ts", "make_zero",
		outPath,
	}
}

// CopyArgs builds the stream-copy argument vector. Boundaries snap to the
// nearest keyframe.
func (e *Executor) CopyArgs(source string, r SegmentRange, outPath string) []string {
	start, length := window(r)
	return []string{
		"-y",
		"-ss", start,
		"-i", source,
		"-t", length,
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outPath,
	}
}

// Extract re-encodes r into outputDir and returns the written path.
func (e *Executor) Extract(ctx context.Context, source string, r SegmentRange, outputDir, format string) (string, error) {
	outPath := filepath.Join(outputDir, OutputName(source, r.Index, format))
	if err := e.run(ctx, r.Index, e.ExtractArgs(source, r, outPath)); err != nil {
		return "", err
	}
	return outPath, nil
}

// ExtractCopy stream-copies r into outputDir and returns the written path.
func (e *Executor) ExtractCopy(ctx context.Context, source string, r SegmentRange, outputDir, format string) (string, error) {
	outPath := filepath.Join(outputDir, SceneOutputName(source, r.Index, format))
	if err := e.run(ctx, r.Index, e.CopyArgs(source, r, outPath)); err != nil {
		return "", err
	}
	return outPath, nil
}

// ExtractFrame writes the single frame at t seconds to outPath.
func (e *Executor) ExtractFrame(ctx context.Context, source string, t float64, outPath string) (string, error) {
	if !(t >= 0) {
		return "", fmt.Errorf("frame time must be >= 0, got %v", t)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return "", fmt.Errorf("%w: create %s: %w", media.ErrIO, filepath.Dir(outPath), err)
	}
	args := []string{
		"-y",
		"-ss", seconds(t),
		"-i", source,
		"-frames:v", "1",
		"-q:v", "2",
		outPath,
	}
	if err := e.run(ctx, 0, args); err != nil {
		return "", err
	}
	return outPath, nil
}

func (e *Executor) run(ctx context.Context, ordinal int, args []string) error {
	if e.DryRun {
		log.Printf("[DryRun] Command: %s", ffexec.CommandLine(e.FFmpegBin, args...))
		return nil
	}

	res, err := e.Runner.Run(ctx, e.FFmpegBin, args...)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("segment %d: %w", ordinal+1, ctx.Err())
		}
		return &media.ExtractionError{Ordinal: ordinal, Diagnostic: err.Error()}
	}
	if !res.OK() {
		return &media.ExtractionError{Ordinal: ordinal, Diagnostic: res.StderrText()}
	}
	return nil
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// window formats the -ss and -t values of r. The length is taken between
// the millisecond-rounded bounds, so each segment ends exactly where the
// next one starts.
func window(r SegmentRange) (start, length string) {
	s := millis(r.Start)
	e := millis(r.End)
	return seconds(float64(s) / 1000), seconds(float64(e-s) / 1000)
}

func millis(v float64) int64 {
	return int64(math.Round(v * 1000))
}
