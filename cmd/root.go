package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mt4110/rec-split/internal/batch"
	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/locator"
	"github.com/mt4110/rec-split/internal/logger"
	"github.com/mt4110/rec-split/internal/notify"
	"github.com/mt4110/rec-split/internal/split"
	"github.com/mt4110/rec-split/internal/watcher"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "rec-split [filesOrDirs...]",
	Short: "動画ファイルを時間・シーン・指定時刻で分割します。",
	Long: `ffmpeg/ffprobe を使って動画を複数のファイルに分割するCLIツール。
一定間隔・等分・シーン検出・指定時刻の4種類の分割方法に対応し、監視モードで自動化も可能。`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadedCfg, err := config.Load()
		if err != nil {
			log.Printf("設定ファイルの読み込みに失敗しました (デフォルト値を使用します): %v", err)
			loadedCfg = config.NewDefault()
		}
		cfg = loadedCfg

		updateConfigFromFlags(cmd, cfg)

		logger.Setup(cfg.LogFile)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		if _, err := cfg.Split.Strategy(); err != nil {
			return err
		}

		if flagWatch {
			return runWatch(ctx, args)
		}

		inputPatterns := args
		if len(inputPatterns) == 0 {
			inputPatterns = []string{"."}
		}
		files := sourceFiles(inputPatterns, cfg.DestDir)
		if len(files) == 0 {
			log.Println("分割対象が見つかりません。")
			return nil
		}
		files = batch.Filter(files, cfg.Keywords, cfg.IgnoreKeywords)
		if len(files) == 0 {
			log.Println("フィルタリングの結果、対象ファイルがありません。")
			return nil
		}

		eng, err := newEngine(ctx, logProgress)
		if err != nil {
			return err
		}
		sum, err := newProcessor(eng).ProcessFiles(ctx, files)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return fmt.Errorf("%d 件の分割に失敗しました", sum.Failed)
		}
		return nil
	},
}

func runWatch(ctx context.Context, targets []string) error {
	if len(targets) > 0 {
		cfg.WatchDirs = targets
	}
	if len(cfg.WatchDirs) == 0 {
		cfg.WatchDirs = []string{"."}
	}

	eng, err := newEngine(ctx, logProgress)
	if err != nil {
		return err
	}
	w := watcher.New(cfg, newProcessor(eng))
	log.Println("👀 監視モードを開始しました (Ctrl+C で終了)")
	return w.Run(ctx)
}

// signalContext is cancelled on Ctrl+C or SIGTERM. In-flight ffmpeg
// processes are killed and the files already written are kept.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newEngine resolves ffmpeg/ffprobe and builds an engine from cfg.
func newEngine(ctx context.Context, progress func(split.Progress)) (*split.Engine, error) {
	tools, err := locator.ResolveTools(cfg.FFmpegBin, cfg.FFprobeBin)
	if err != nil {
		return nil, err
	}

	var runner ffexec.Runner = &ffexec.ExecRunner{Verbose: cfg.Verbose}
	if cfg.Verbose {
		runner = &ffexec.LogRunner{Next: runner}
		locator.SuggestUpgrade(ctx, runner)
	}

	eng := split.New(tools.FFmpeg, tools.FFprobe, runner, cfg.Encode(), split.Options{
		Workers:         cfg.EffectiveWorkers(),
		ContinueOnError: cfg.ContinueOnError,
		Progress:        progress,
	})
	eng.Executor().DryRun = cfg.DryRun
	return eng, nil
}

func newProcessor(eng *split.Engine) *batch.Processor {
	var n notify.Notifier = notify.Nop{}
	if cfg.Notify {
		n = notify.Desktop{}
	}
	return batch.New(cfg, eng, n)
}

func logProgress(p split.Progress) {
	log.Printf("   %s (%.0f%%)", p.Message, p.Percentage)
}

// Temporary variables for flags
var (
	flagDest            string
	flagFormat          string
	flagMode            string
	flagInterval        float64
	flagCount           int
	flagThreshold       float64
	flagMinGap          float64
	flagPoints          []float64
	flagCopy            bool
	flagCRF             int
	flagPreset          string
	flagVideoCodec      string
	flagAudioCodec      string
	flagProfile         string
	flagWorkers         int
	flagContinueOnError bool
	flagKeywords        []string
	flagIgnoreKeywords  []string
	flagBatchStamp      bool
	flagWatch           bool
	flagNotify          bool
	flagDryRun          bool

	flagFFmpegBin  string
	flagFFprobeBin string
	flagVerbose    bool
	flagLogFile    string
)

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagFFmpegBin, "ffmpeg-bin", "", "ffmpegのバイナリパスを明示的に指定する")
	pf.StringVar(&flagFFprobeBin, "ffprobe-bin", "", "ffprobeのバイナリパスを明示的に指定する")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "ffmpegのコマンドと出力を表示する")
	pf.StringVar(&flagLogFile, "log-file", "", "ログファイルのパス")

	f := rootCmd.Flags()
	f.StringVar(&flagDest, "dest", "", "出力先ディレクトリ")
	f.StringVar(&flagFormat, "format", "", "出力コンテナの拡張子 (mp4, mkv など)")
	f.StringVar(&flagMode, "mode", "", "分割方法: time | count | scene | manual")
	f.Float64Var(&flagInterval, "interval", 0, "time: 分割間隔 (秒)")
	f.IntVar(&flagCount, "count", 0, "count: 等分する数")
	f.Float64Var(&flagThreshold, "threshold", 0, "scene: シーン検出のしきい値 (0-1)")
	f.Float64Var(&flagMinGap, "min-gap", 0, "scene: シーン間の最小間隔 (秒, 0で既定の2秒)")
	f.Float64SliceVar(&flagPoints, "points", nil, "manual: 分割する時刻 (秒, カンマ区切り)")
	f.BoolVar(&flagCopy, "copy", false, "scene: 再エンコードせずにストリームコピーで分割する (キーフレーム単位)")
	f.IntVar(&flagCRF, "crf", 0, "CRF値 (品質)")
	f.StringVar(&flagPreset, "preset", "", "エンコードプリセット")
	f.StringVar(&flagVideoCodec, "vcodec", "", "映像コーデック")
	f.StringVar(&flagAudioCodec, "acodec", "", "音声コーデック")
	f.StringVar(&flagProfile, "profile", "", "使用するプロファイル名")
	f.IntVar(&flagWorkers, "workers", 0, "セグメントの並列実行数")
	f.BoolVar(&flagContinueOnError, "continue-on-error", false, "失敗したセグメントがあっても残りを処理する")
	f.StringSliceVar(&flagKeywords, "keywords", []string{}, "ファイル名に含まれるキーワードでフィルタ")
	f.StringSliceVar(&flagIgnoreKeywords, "ignore-keywords", []string{}, "ファイル名に含まれるキーワードを除外")
	f.BoolVar(&flagBatchStamp, "batch-stamp", true, "出力先ディレクトリを日付付きで作成する (default true)")
	f.BoolVar(&flagWatch, "watch", false, "指定したディレクトリを監視して自動分割する")
	f.BoolVar(&flagNotify, "notify", true, "分割完了時にデスクトップ通知を送る")
	f.BoolVar(&flagDryRun, "dry-run", false, "実行せずにコマンドを表示する")
}

func updateConfigFromFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()

	// 1. Apply Profile first if exists
	if flags.Changed("profile") {
		if err := c.ApplyProfile(flagProfile); err != nil {
			log.Printf("⚠️ プロファイル '%s' は見つかりませんでした。デフォルト設定を使用します。", flagProfile)
		} else {
			log.Printf("ℹ️ プロファイル '%s' を適用しました (CRF: %d, Preset: %s)", flagProfile, c.CRF, c.Preset)
		}
	}

	// A strategy parameter without --mode selects its mode.
	switch {
	case flags.Changed("mode"):
		c.Split.Mode = flagMode
	case flags.Changed("points"):
		c.Split.Mode = "manual"
	case flags.Changed("count"):
		c.Split.Mode = "count"
	case flags.Changed("threshold"), flags.Changed("copy") && flagCopy:
		c.Split.Mode = "scene"
	case flags.Changed("interval"):
		c.Split.Mode = "time"
	}
	if flags.Changed("interval") {
		c.Split.Interval = flagInterval
	}
	if flags.Changed("count") {
		c.Split.Count = flagCount
	}
	if flags.Changed("threshold") {
		c.Split.Threshold = flagThreshold
	}
	if flags.Changed("min-gap") {
		c.Split.MinGap = flagMinGap
	}
	if flags.Changed("points") {
		c.Split.Points = flagPoints
	}
	if flags.Changed("copy") {
		c.Copy = flagCopy
	}

	if flags.Changed("dest") {
		c.DestDir = flagDest
	}
	if flags.Changed("format") {
		c.Format = flagFormat
	}
	if flags.Changed("crf") {
		c.CRF = flagCRF
	}
	if flags.Changed("preset") {
		c.Preset = flagPreset
	}
	if flags.Changed("vcodec") {
		c.VideoCodec = flagVideoCodec
	}
	if flags.Changed("acodec") {
		c.AudioCodec = flagAudioCodec
	}
	if flags.Changed("workers") {
		c.Workers = flagWorkers
	}
	if flags.Changed("continue-on-error") {
		c.ContinueOnError = flagContinueOnError
	}
	if flags.Changed("keywords") {
		c.Keywords = flagKeywords
	}
	if flags.Changed("ignore-keywords") {
		c.IgnoreKeywords = flagIgnoreKeywords
	}
	if flags.Changed("batch-stamp") {
		c.BatchStamp = flagBatchStamp
	}
	// Notify is default true, so we need careful handling if user passed --notify=false
	if flags.Changed("notify") {
		c.Notify = flagNotify
	}
	if flags.Changed("dry-run") {
		c.DryRun = flagDryRun
	}
	if flags.Changed("ffmpeg-bin") {
		c.FFmpegBin = flagFFmpegBin
	}
	if flags.Changed("ffprobe-bin") {
		c.FFprobeBin = flagFFprobeBin
	}
	if flags.Changed("verbose") {
		c.Verbose = flagVerbose
	}
	if flags.Changed("log-file") {
		c.LogFile = flagLogFile
	}
}
