package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/media"
	"github.com/mt4110/rec-split/internal/split"
)

type fakeSplitter struct {
	jobs   []split.Job
	copies []string
	fail   map[string]error
}

func (f *fakeSplitter) Run(_ context.Context, job split.Job) (*split.Outcome, error) {
	f.jobs = append(f.jobs, job)
	out := &split.Outcome{Source: job.Source, OutputFiles: []string{}}
	if err := f.fail[job.Source]; err != nil {
		return out, err
	}
	out.Success = true
	out.OutputFiles = []string{"a", "b"}
	return out, nil
}

func (f *fakeSplitter) SplitBySceneCopy(_ context.Context, source string, _, _ float64, _, _ string) (*split.Outcome, error) {
	f.copies = append(f.copies, source)
	return &split.Outcome{Source: source, Success: true, OutputFiles: []string{"c"}}, nil
}

type note struct{ title, message, path string }

type recordingNotifier struct{ notes []note }

func (r *recordingNotifier) Notify(title, message, filePath string) {
	r.notes = append(r.notes, note{title, message, filePath})
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.NewDefault()
	cfg.DestDir = t.TempDir()
	cfg.BatchStamp = false
	cfg.Notify = false
	cfg.Split = config.StrategyConfig{Mode: "time", Interval: 30}
	return cfg
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		keywords []string
		ignore   []string
		want     bool
	}{
		{"no filters", "video.mp4", nil, nil, true},
		{"ignore match", "archive_video.mp4", nil, []string{"archive"}, false},
		{"ignore mismatch", "video.mp4", nil, []string{"archive"}, true},
		{"include match", "meeting_recording.mp4", []string{"meeting"}, nil, true},
		{"include case-insensitive", "Meeting.MP4", []string{"MEETING"}, nil, true},
		{"include mismatch", "random.mp4", []string{"meeting"}, nil, false},
		{"ignore wins", "meeting_archive.mp4", []string{"meeting"}, []string{"archive"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.filename, tt.keywords, tt.ignore))
		})
	}
}

func TestFilter(t *testing.T) {
	files := []string{"/rec/meeting_1.mp4", "/rec/meeting_old/x.mp4", "/rec/lunch.mov"}
	assert.Equal(t, []string{"/rec/meeting_1.mp4"}, Filter(files, []string{"meeting"}, nil))
}

func TestWithoutDir(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "out")
	files := []string{
		filepath.Join(root, "clip.mp4"),
		filepath.Join(out, "20261018", "clip_001.mp4"),
		filepath.Join(out, "clip_002.mp4"),
		filepath.Join(root, "outtakes", "take.mp4"),
	}

	got := WithoutDir(files, out)
	assert.Equal(t, []string{files[0], files[3]}, got)
}

func TestWithoutDir_Relative(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)

	files := []string{"clip.mp4", "out/20261018/clip_001.mp4", "../elsewhere/out/x.mp4"}
	assert.Equal(t, []string{"clip.mp4", "../elsewhere/out/x.mp4"}, WithoutDir(files, "./out"))
	assert.Equal(t, files, WithoutDir(files, ""))
}

func TestOutputDir(t *testing.T) {
	cfg := testConfig(t)
	p := New(cfg, &fakeSplitter{}, nil)

	dir, err := p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, cfg.DestDir, dir)

	cfg.BatchStamp = true
	dir, err = p.OutputDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.DestDir, time.Now().Format("20060102")), dir)
	assert.DirExists(t, dir)
}

func TestProcessFiles(t *testing.T) {
	cfg := testConfig(t)
	fs := &fakeSplitter{fail: map[string]error{
		"b.mp4": &media.ExtractionError{Ordinal: 0, Diagnostic: "codec not supported"},
	}}
	p := New(cfg, fs, nil)

	sum, err := p.ProcessFiles(context.Background(), []string{"a.mp4", "b.mp4", "c.mp4"})
	require.NoError(t, err)
	assert.Equal(t, Summary{Succeeded: 2, Failed: 1, Segments: 4}, sum)

	require.Len(t, fs.jobs, 3)
	for _, j := range fs.jobs {
		assert.Equal(t, split.TimeInterval{Duration: 30}, j.Strategy)
		assert.Equal(t, cfg.DestDir, j.OutputDir)
		assert.Equal(t, "mp4", j.Format)
	}
}

func TestProcessFiles_Cancelled(t *testing.T) {
	cfg := testConfig(t)
	fs := &fakeSplitter{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, fs, nil).ProcessFiles(ctx, []string{"a.mp4"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, fs.jobs)
}

func TestSplitOne_InvalidStrategy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Split.Mode = "chapters"
	fs := &fakeSplitter{}

	_, err := New(cfg, fs, nil).SplitOne(context.Background(), "a.mp4", cfg.DestDir)
	assert.ErrorIs(t, err, media.ErrInvalidStrategy)
	assert.Empty(t, fs.jobs)
}

func TestSplitOne_SceneCopy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Split = config.StrategyConfig{Mode: "scene", Threshold: 0.4}
	cfg.Copy = true
	fs := &fakeSplitter{}

	out, err := New(cfg, fs, nil).SplitOne(context.Background(), "a.mp4", cfg.DestDir)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, out.OutputFiles)
	assert.Equal(t, []string{"a.mp4"}, fs.copies)
	assert.Empty(t, fs.jobs)
}

func TestSplitOne_Notifies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify = true
	fs := &fakeSplitter{fail: map[string]error{"bad.mp4": errors.New("boom")}}
	n := &recordingNotifier{}
	p := New(cfg, fs, n)

	_, err := p.SplitOne(context.Background(), "/rec/good.mp4", "/out")
	require.NoError(t, err)
	_, err = p.SplitOne(context.Background(), "bad.mp4", "/out")
	require.Error(t, err)

	require.Len(t, n.notes, 2)
	assert.Equal(t, note{"分割完了", "good.mp4 を 2 個に分割しました。", "/out"}, n.notes[0])
	assert.Equal(t, "分割失敗", n.notes[1].title)
	assert.Empty(t, n.notes[1].path)
}

// sourceTools answers ffprobe with a 60 s video and writes the -i path
// into every segment, so a test can tell which source produced a file.
type sourceTools struct {
	mu sync.Mutex
}

func (f *sourceTools) Run(_ context.Context, name string, args ...string) (ffexec.Result, error) {
	if name == "ffprobe" {
		js := `{"streams":[{"codec_type":"video","codec_name":"h264","width":640,"height":360,"r_frame_rate":"25/1"}],
"format":{"format_name":"mov,mp4","duration":"60.0"}}`
		return ffexec.Result{Stdout: []byte(js)}, nil
	}
	i := slices.Index(args, "-i")
	if i < 0 || i+1 >= len(args) {
		return ffexec.Result{ExitCode: 1, Stderr: []byte("no input")}, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.WriteFile(args[len(args)-1], []byte(args[i+1]), 0644); err != nil {
		return ffexec.Result{}, err
	}
	return ffexec.Result{}, nil
}

func writeSource(t *testing.T, path string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("video"), 0644))
	return path
}

func TestProcessFiles_SameNameSourcesKeepAllSegments(t *testing.T) {
	cfg := testConfig(t)
	root := t.TempDir()
	a := writeSource(t, filepath.Join(root, "a", "clip.mp4"))
	b := writeSource(t, filepath.Join(root, "b", "clip.mp4"))

	eng := split.New("ffmpeg", "ffprobe", &sourceTools{}, split.EncodeOptions{}, split.Options{})
	p := New(cfg, eng, nil)

	sum, err := p.ProcessFiles(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, Summary{Succeeded: 2, Segments: 4}, sum)

	var written []string
	bySource := map[string]int{}
	err = filepath.WalkDir(cfg.DestDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(cfg.DestDir, path)
		written = append(written, filepath.ToSlash(rel))
		bySource[string(data)]++
		return nil
	})
	require.NoError(t, err)

	sort.Strings(written)
	assert.Equal(t, []string{"clip_001.mp4", "clip_002.mp4", "clip_2/clip_001.mp4", "clip_2/clip_002.mp4"}, written)
	assert.Equal(t, map[string]int{a: 2, b: 2}, bySource)
}

func TestSplitOne_ExistingSegmentsAreKept(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DestDir, "clip_001.mp4"), []byte("old"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.DestDir, "clip_2"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DestDir, "clip_2", "clip_scene_001.mp4"), []byte("old"), 0644))
	fs := &fakeSplitter{}

	_, err := New(cfg, fs, nil).SplitOne(context.Background(), "/rec/clip.mp4", cfg.DestDir)
	require.NoError(t, err)

	require.Len(t, fs.jobs, 1)
	assert.Equal(t, filepath.Join(cfg.DestDir, "clip_3"), fs.jobs[0].OutputDir)
}
