package watcher

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mt4110/rec-split/internal/batch"
	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/media"
	"github.com/mt4110/rec-split/internal/split"
)

// defaultSettle is how long a new file is left alone before splitting,
// so the recorder can finish writing it.
const defaultSettle = 2 * time.Second

type Watcher struct {
	Cfg       *config.Config
	Processor *batch.Processor
	EventChan chan<- interface{} // Optional: Send events for TUI
	Settle    time.Duration

	processingMu sync.Mutex
	processing   map[string]bool
	wg           sync.WaitGroup
}

func New(cfg *config.Config, p *batch.Processor) *Watcher {
	return &Watcher{
		Cfg:        cfg,
		Processor:  p,
		Settle:     defaultSettle,
		processing: make(map[string]bool),
	}
}

// Events
type WatchingEvent struct {
	Dirs []string
}
type FileFoundEvent struct {
	Path string
	Name string
}
type StartSplitEvent struct {
	Path string
}
type ProgressEvent struct {
	split.Progress
}
type SuccessEvent struct {
	Path    string
	Outcome *split.Outcome
}
type FailureEvent struct {
	Path    string
	Err     error
	Outcome *split.Outcome
}

// Progress forwards engine progress to EventChan. Wire it into
// split.Options.Progress.
func (w *Watcher) Progress(p split.Progress) {
	w.emit(ProgressEvent{Progress: p})
}

// Run watches Cfg.WatchDirs until ctx is cancelled and waits for the
// splits it started.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.Cfg.WatchDirs) == 0 {
		return fmt.Errorf("監視対象のディレクトリが設定されていません")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	var watching []string
	for _, dir := range w.Cfg.WatchDirs {
		absDir, err := filepath.Abs(dir)
		if err != nil {
			log.Printf("⚠️ ディレクトリパスの解決に失敗 (スキップ): %s -> %v", dir, err)
			continue
		}
		if err = fw.Add(absDir); err != nil {
			log.Printf("⚠️ 監視エラー (スキップ): %s -> %v", dir, err)
			continue
		}
		log.Printf("監視を開始しました: %s", absDir)
		watching = append(watching, absDir)
	}
	if len(watching) == 0 {
		return fmt.Errorf("監視できるディレクトリがありません: %v", w.Cfg.WatchDirs)
	}
	w.emit(WatchingEvent{Dirs: watching})

	defer w.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			log.Println("監視を終了します")
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Println("監視エラー:", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	fName := filepath.Base(event.Name)
	if strings.HasPrefix(fName, ".") || !media.IsSupported(fName) {
		return
	}
	if !w.shouldProcess(event.Name) {
		return
	}

	w.processingMu.Lock()
	if w.processing[event.Name] {
		w.processingMu.Unlock()
		log.Printf("すでに処理中です: %s", event.Name)
		return
	}
	w.processing[event.Name] = true
	w.processingMu.Unlock()

	log.Printf("新規ファイルを検知: %s", event.Name)
	w.emit(FileFoundEvent{Path: event.Name, Name: fName})

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processFile(ctx, event.Name)
	}()
}

func (w *Watcher) shouldProcess(path string) bool {
	if len(batch.WithoutDir([]string{path}, w.Cfg.DestDir)) == 0 {
		return false
	}
	fName := filepath.Base(path)
	if !batch.Match(fName, w.Cfg.Keywords, w.Cfg.IgnoreKeywords) {
		log.Printf("キーワード条件に一致しないためスキップ: %s", fName)
		return false
	}
	return true
}

func (w *Watcher) processFile(ctx context.Context, path string) {
	defer func() {
		w.processingMu.Lock()
		delete(w.processing, path)
		w.processingMu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return
	case <-time.After(w.Settle):
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Printf("ファイルが見つかりません (削除または移動されました): %s", path)
		return
	}

	outDir, err := w.Processor.OutputDir()
	if err != nil {
		log.Printf("出力ディレクトリ作成失敗: %v", err)
		w.emit(FailureEvent{Path: path, Err: err})
		return
	}

	log.Printf("分割開始: %s", path)
	w.emit(StartSplitEvent{Path: path})

	out, err := w.Processor.SplitOne(ctx, path, outDir)
	if err != nil {
		log.Printf("❌ 分割失敗: %v", err)
		w.emit(FailureEvent{Path: path, Err: err, Outcome: out})
		return
	}
	log.Printf("✅ 分割完了: %s", path)
	w.emit(SuccessEvent{Path: path, Outcome: out})
}

func (w *Watcher) emit(ev interface{}) {
	if w.EventChan != nil {
		w.EventChan <- ev
	}
}
