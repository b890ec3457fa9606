// Package probe turns ffprobe output into media.MediaInfo.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
)

// Client runs ffprobe through Runner.
type Client struct {
	FFprobeBin string
	Runner     ffexec.Runner
}

func New(ffprobeBin string, runner ffexec.Runner) *Client {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if runner == nil {
		runner = &ffexec.ExecRunner{}
	}
	return &Client{FFprobeBin: ffprobeBin, Runner: runner}
}

// Probe validates path and runs a single ffprobe JSON call against it.
func (c *Client) Probe(ctx context.Context, path string) (*media.MediaInfo, error) {
	if err := media.ValidateSource(path); err != nil {
		return nil, err
	}

	res, err := c.Runner.Run(ctx, c.FFprobeBin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe %q: %w", media.ErrProbeFailed, path, err)
	}
	if !res.OK() {
		return nil, fmt.Errorf("%w: ffprobe %q exited with %d: %s", media.ErrProbeFailed, path, res.ExitCode, res.StderrText())
	}

	return ParseJSON(path, res.Stdout)
}

// Duration is the minimal probe: ffprobe prints only the container
// duration as a bare decimal.
func (c *Client) Duration(ctx context.Context, path string) (float64, error) {
	res, err := c.Runner.Run(ctx, c.FFprobeBin,
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe %q: %w", media.ErrProbeFailed, path, err)
	}
	if !res.OK() {
		return 0, fmt.Errorf("%w: ffprobe %q exited with %d: %s", media.ErrProbeFailed, path, res.ExitCode, res.StderrText())
	}

	s := strings.TrimSpace(string(res.Stdout))
	d, err := strconv.ParseFloat(s, 64)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%w: invalid duration %q", media.ErrProbeFailed, s)
	}
	return d, nil
}

// ParseJSON converts raw ffprobe JSON output into a MediaInfo.
// Exported for testing without a real ffprobe binary.
func ParseJSON(path string, data []byte) (*media.MediaInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe JSON: %w", media.ErrProbeFailed, err)
	}
	return buildInfo(path, &raw)
}

// --- ffprobe JSON wire types ---

type ffprobeOutput struct {
	Format  ffprobeFormat   `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

type ffprobeFormat struct {
	FormatName string `json:"format_name"`
	Duration   number `json:"duration"`
	Size       number `json:"size"`
	BitRate    number `json:"bit_rate"`
}

type ffprobeStream struct {
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        number `json:"width"`
	Height       number `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

// number accepts a JSON number or a decimal string. Anything else
// decodes to zero instead of failing the whole document.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = number(f)
	return nil
}

// --- Conversion from wire types to domain types ---

func buildInfo(path string, raw *ffprobeOutput) (*media.MediaInfo, error) {
	info := &media.MediaInfo{
		Path:     path,
		Filename: filepath.Base(path),
		Duration: nonNegative(float64(raw.Format.Duration)),
		Bitrate:  int64(nonNegative(float64(raw.Format.BitRate))),
		Size:     int64(nonNegative(float64(raw.Format.Size))),
		Format:   raw.Format.FormatName,
	}
	if info.Format == "" {
		info.Format = "unknown"
	}

	var video *ffprobeStream
	for i := range raw.Streams {
		s := &raw.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}
	if video == nil {
		return nil, fmt.Errorf("%w: %s", media.ErrNoVideoStream, path)
	}

	info.Width = int(nonNegative(float64(video.Width)))
	info.Height = int(nonNegative(float64(video.Height)))
	info.VideoCodec = video.CodecName
	info.FPS = ParseRate(video.RFrameRate)
	if info.FPS == 0 {
		info.FPS = ParseRate(video.AvgFrameRate)
	}
	return info, nil
}

// ParseRate converts an ffprobe rational such as "30000/1001" into frames
// per second. A bare number is accepted; a zero denominator or malformed
// input yields 0.
func ParseRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	numStr, denStr, found := strings.Cut(s, "/")
	num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0
	}
	if !found {
		return nonNegative(num)
	}
	den, err := strconv.ParseFloat(strings.TrimSpace(denStr), 64)
	if err != nil || den == 0 {
		return 0
	}
	return nonNegative(num / den)
}

func nonNegative(f float64) float64 {
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
