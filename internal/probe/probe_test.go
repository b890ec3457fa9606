package probe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
)

type fakeRunner struct {
	res   ffexec.Result
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (ffexec.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.res, f.err
}

func touch(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("not really a video"), 0644))
	return p
}

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "aac", "codec_type": "audio"},
    {"index": 1, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "r_frame_rate": "30000/1001", "avg_frame_rate": "30000/1001"},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video", "width": 320, "height": 240,
     "r_frame_rate": "90000/1"}
  ],
  "format": {
    "filename": "in.mp4",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2",
    "duration": "90.000000",
    "size": "1048576",
    "bit_rate": "93206"
  }
}`

func TestParseJSON_FirstVideoStreamWins(t *testing.T) {
	info, err := ParseJSON("/videos/in.mp4", []byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, "/videos/in.mp4", info.Path)
	assert.Equal(t, "in.mp4", info.Filename)
	assert.InDelta(t, 90.0, info.Duration, 1e-9)
	assert.Equal(t, 1920, info.Width)
	assert.Equal(t, 1080, info.Height)
	assert.InDelta(t, 29.97, info.FPS, 0.01)
	assert.Equal(t, int64(93206), info.Bitrate)
	assert.Equal(t, int64(1048576), info.Size)
	assert.Equal(t, "mov,mp4,m4a,3gp,3g2,mj2", info.Format)
	assert.Equal(t, "h264", info.VideoCodec)
	assert.Equal(t, "aac", info.AudioCodec)
}

func TestParseJSON_MalformedFieldsDegrade(t *testing.T) {
	data := `{
	  "streams": [{"codec_type": "video", "width": "wide", "height": null, "r_frame_rate": "25/0"}],
	  "format": {"duration": "N/A", "bit_rate": {"nested": true}, "size": 42}
	}`
	info, err := ParseJSON("x.mkv", []byte(data))
	require.NoError(t, err)

	assert.Zero(t, info.Duration)
	assert.Zero(t, info.Width)
	assert.Zero(t, info.Height)
	assert.Zero(t, info.FPS)
	assert.Zero(t, info.Bitrate)
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, "unknown", info.Format)
}

func TestParseJSON_NoVideoStream(t *testing.T) {
	data := `{"streams": [{"codec_type": "audio"}], "format": {"duration": "3.0"}}`
	_, err := ParseJSON("x.mp4", []byte(data))
	assert.ErrorIs(t, err, media.ErrNoVideoStream)
}

func TestParseJSON_NotJSON(t *testing.T) {
	_, err := ParseJSON("x.mp4", []byte("garbage"))
	assert.ErrorIs(t, err, media.ErrProbeFailed)
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"30000/1001", 30000.0 / 1001.0},
		{"25", 25},
		{"25/0", 0},
		{"0/0", 0},
		{"", 0},
		{"abc/1", 0},
		{"30/x", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.InDelta(t, tt.want, ParseRate(tt.in), 1e-9)
		})
	}
}

func TestClientProbe(t *testing.T) {
	src := touch(t, "in.mp4")
	fr := &fakeRunner{res: ffexec.Result{Stdout: []byte(sampleJSON)}}
	c := New("/opt/bin/ffprobe", fr)

	info, err := c.Probe(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1920, info.Width)

	require.Len(t, fr.calls, 1)
	assert.Equal(t, []string{
		"/opt/bin/ffprobe", "-v", "quiet", "-print_format", "json",
		"-show_format", "-show_streams", src,
	}, fr.calls[0])
}

func TestClientProbe_ValidationBeforeSubprocess(t *testing.T) {
	fr := &fakeRunner{}
	c := New("", fr)

	_, err := c.Probe(context.Background(), filepath.Join(t.TempDir(), "missing.mp4"))
	assert.ErrorIs(t, err, media.ErrNotFound)

	_, err = c.Probe(context.Background(), touch(t, "doc.pdf"))
	assert.ErrorIs(t, err, media.ErrUnsupportedFormat)

	assert.Empty(t, fr.calls, "ffprobe must not run for invalid sources")
}

func TestClientProbe_Failures(t *testing.T) {
	src := touch(t, "in.mov")

	t.Run("non-zero exit", func(t *testing.T) {
		c := New("", &fakeRunner{res: ffexec.Result{ExitCode: 1, Stderr: []byte("moov atom not found\n")}})
		_, err := c.Probe(context.Background(), src)
		assert.ErrorIs(t, err, media.ErrProbeFailed)
		assert.Contains(t, err.Error(), "moov atom not found")
	})

	t.Run("cannot start", func(t *testing.T) {
		c := New("", &fakeRunner{err: errors.New("exec: not found")})
		_, err := c.Probe(context.Background(), src)
		assert.ErrorIs(t, err, media.ErrProbeFailed)
	})
}

func TestClientDuration(t *testing.T) {
	fr := &fakeRunner{res: ffexec.Result{Stdout: []byte("123.456000\n")}}
	c := New("ffprobe", fr)

	d, err := c.Duration(context.Background(), "in.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 123.456, d, 1e-9)
	assert.Equal(t, []string{
		"ffprobe", "-v", "quiet", "-show_entries", "format=duration", "-of", "csv=p=0", "in.mp4",
	}, fr.calls[0])

	c = New("ffprobe", &fakeRunner{res: ffexec.Result{Stdout: []byte("N/A\n")}})
	_, err = c.Duration(context.Background(), "in.mp4")
	assert.ErrorIs(t, err, media.ErrProbeFailed)
}
