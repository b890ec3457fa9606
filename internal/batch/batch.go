// Package batch splits a list of source files with the configured
// strategy, one after another, into a shared output directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/notify"
	"github.com/mt4110/rec-split/internal/split"
)

// Splitter is the part of split.Engine a Processor drives.
type Splitter interface {
	Run(ctx context.Context, job split.Job) (*split.Outcome, error)
	SplitBySceneCopy(ctx context.Context, source string, threshold, minGap float64, outputDir, format string) (*split.Outcome, error)
}

type Processor struct {
	Cfg      *config.Config
	Engine   Splitter
	Notifier notify.Notifier

	claimMu sync.Mutex
	claimed map[string]bool // first segment path of every split started
}

func New(cfg *config.Config, eng Splitter, n notify.Notifier) *Processor {
	if n == nil {
		n = notify.Nop{}
	}
	return &Processor{Cfg: cfg, Engine: eng, Notifier: n, claimed: make(map[string]bool)}
}

// Summary counts the files of one ProcessFiles call.
type Summary struct {
	Succeeded int
	Failed    int
	Segments  int
}

// Match applies the include/ignore keyword filters to a file name.
// Matching is case-insensitive and ignore wins over include.
func Match(name string, keywords, ignore []string) bool {
	lowerName := strings.ToLower(name)
	for _, k := range ignore {
		if strings.Contains(lowerName, strings.ToLower(k)) {
			return false
		}
	}
	if len(keywords) == 0 {
		return true
	}
	for _, k := range keywords {
		if strings.Contains(lowerName, strings.ToLower(k)) {
			return true
		}
	}
	return false
}

// WithoutDir drops the files that live in dir or below it, so a run never
// picks up the segments an earlier run wrote there. An empty dir keeps
// every file.
func WithoutDir(files []string, dir string) []string {
	if dir == "" {
		return files
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return files
	}
	var out []string
	for _, f := range files {
		if within(f, absDir) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func within(path, absDir string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absDir, abs)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Filter keeps the files whose base name passes Match.
func Filter(files, keywords, ignore []string) []string {
	var out []string
	for _, f := range files {
		if Match(filepath.Base(f), keywords, ignore) {
			out = append(out, f)
		}
	}
	return out
}

// OutputDir resolves DestDir, adding a yyyymmdd directory when BatchStamp
// is set, and creates it.
func (p *Processor) OutputDir() (string, error) {
	baseOut, err := filepath.Abs(p.Cfg.DestDir)
	if err != nil {
		return "", fmt.Errorf("出力先の解決に失敗: %w", err)
	}
	dir := baseOut
	if p.Cfg.BatchStamp {
		dir = filepath.Join(baseOut, nowStamp())
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("出力ディレクトリの作成に失敗: %w", err)
	}
	return dir, nil
}

// targetDir picks where the segments of source go. It is outDir unless
// a segment of the same name already exists there or another source of
// this Processor claimed it, in which case "<stem>_2", "<stem>_3", ...
// below outDir are tried in turn.
func (p *Processor) targetDir(source, outDir string) string {
	first := split.OutputName(source, 0, p.Cfg.Format)
	firstScene := split.SceneOutputName(source, 0, p.Cfg.Format)
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	if p.claimed == nil {
		p.claimed = make(map[string]bool)
	}

	dir := outDir
	for n := 2; ; n++ {
		key := filepath.Join(dir, first)
		if !p.claimed[key] && !exists(key) && !exists(filepath.Join(dir, firstScene)) {
			p.claimed[key] = true
			return dir
		}
		dir = filepath.Join(outDir, fmt.Sprintf("%s_%d", stem, n))
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// SplitOne splits path below outDir. Copy mode with a scene strategy takes
// the stream-copy path; everything else is re-encoded. Segments never
// replace the output of an earlier source with the same name; see
// targetDir.
func (p *Processor) SplitOne(ctx context.Context, path, outDir string) (*split.Outcome, error) {
	st, err := p.Cfg.Split.Strategy()
	if err != nil {
		return nil, err
	}
	outDir = p.targetDir(path, outDir)

	var out *split.Outcome
	if sc, ok := st.(split.Scene); ok && p.Cfg.Copy {
		out, err = p.Engine.SplitBySceneCopy(ctx, path, sc.Threshold, sc.MinGap, outDir, p.Cfg.Format)
	} else {
		out, err = p.Engine.Run(ctx, split.Job{
			Source:    path,
			Strategy:  st,
			OutputDir: outDir,
			Format:    p.Cfg.Format,
		})
	}

	if p.Cfg.Notify {
		name := filepath.Base(path)
		if err != nil {
			p.Notifier.Notify("分割失敗", fmt.Sprintf("%s の分割に失敗しました。", name), "")
		} else {
			p.Notifier.Notify("分割完了", fmt.Sprintf("%s を %d 個に分割しました。", name, len(out.OutputFiles)), outDir)
		}
	}
	return out, err
}

// ProcessFiles splits every file in order. It stops early only when ctx
// is cancelled; a failed file is logged and counted.
func (p *Processor) ProcessFiles(ctx context.Context, files []string) (Summary, error) {
	var sum Summary

	outDir, err := p.OutputDir()
	if err != nil {
		return sum, err
	}

	log.Printf("分割対象: %d件", len(files))
	log.Printf("出力先: %s", outDir)
	log.Printf("並列実行数: %d", p.Cfg.EffectiveWorkers())

	for _, inPath := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		out, err := p.SplitOne(ctx, inPath, outDir)
		if out != nil {
			sum.Segments += len(out.OutputFiles)
		}
		if err != nil {
			sum.Failed++
			log.Printf("❌ 分割失敗: %s -> %v", inPath, err)
			if errors.Is(err, context.Canceled) {
				return sum, err
			}
			continue
		}
		sum.Succeeded++
	}

	log.Printf("✅ すべて完了 (成功: %d, 失敗: %d, セグメント: %d)", sum.Succeeded, sum.Failed, sum.Segments)
	return sum, nil
}

func nowStamp() string {
	return time.Now().Format("20060102")
}
