package cmd

import (
	"context"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/spf13/cobra"

	"github.com/mt4110/rec-split/internal/config"
	"github.com/mt4110/rec-split/internal/ffexec"
	"github.com/mt4110/rec-split/internal/locator"
	"github.com/mt4110/rec-split/internal/logger"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "環境の診断を行います",
	Long:  `ffmpeg/ffprobeのインストール状況、ログディレクトリの権限、設定ファイル、マシンの性能をチェックします。`,
	Run: func(cmd *cobra.Command, args []string) {
		log.Println("🏥 環境診断を開始します...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		hasError := false
		runner := &ffexec.ExecRunner{}

		// 1. ffmpeg / ffprobe
		for _, tool := range []struct{ name, configured string }{
			{"ffmpeg", cfg.FFmpegBin},
			{"ffprobe", cfg.FFprobeBin},
		} {
			path, err := locator.Resolve(tool.configured, tool.name)
			if err != nil {
				log.Printf("❌ %v", err)
				hasError = true
				continue
			}
			log.Printf("✅ %s found: %s", tool.name, path)
			if v, err := locator.Version(ctx, runner, path); err == nil {
				log.Printf("   Version: %s", v)
			} else {
				log.Printf("⚠️ %s のバージョン取得に失敗: %v", tool.name, err)
			}
		}
		locator.SuggestUpgrade(ctx, runner)

		// 2. terminal-notifier check
		if path, err := exec.LookPath("terminal-notifier"); err != nil {
			log.Println("⚠️ terminal-notifier が見つかりません。通知をクリックして出力先を開く機能が動作しません。 (推奨: `brew install terminal-notifier`)")
		} else {
			log.Printf("✅ terminal-notifier found: %s", path)
		}

		// 3. Log Directory check
		logPath := cfg.LogFile
		if logPath == "" {
			logPath = logger.DefaultPath()
		}
		logDir := filepath.Dir(logPath)
		if info, err := os.Stat(logDir); err != nil {
			log.Printf("⚠️ ログディレクトリ (%s) にアクセスできません: %v", logDir, err)
		} else if !info.IsDir() {
			log.Printf("⚠️ %s はディレクトリではありません", logDir)
		} else {
			testFile := filepath.Join(logDir, "rec-split-write-test")
			if f, err := os.Create(testFile); err != nil {
				log.Printf("❌ ログディレクトリへの書き込み権限がありません: %v", err)
				hasError = true
			} else {
				f.Close()
				os.Remove(testFile)
				log.Println("✅ ログディレクトリ権限 OK")
			}
		}

		// 4. Config
		if configPath, err := config.Path(); err == nil {
			if _, err := os.Stat(configPath); err != nil {
				log.Println("ℹ️ 設定ファイルは見つかりませんでした (`rec-split init` で作成できます)")
			} else {
				log.Printf("✅ config found: %s", configPath)
			}
		}
		if st, err := cfg.Split.Strategy(); err != nil {
			log.Printf("❌ 分割設定が不正です: %v", err)
			hasError = true
		} else {
			log.Printf("✅ 分割方法: %s", st)
		}

		// 5. Machine
		reportHost(ctx)

		if hasError {
			log.Println("\n❌ いくつかの問題が見つかりました。修正してください。")
			os.Exit(1)
		} else {
			log.Println("\n✅ 診断完了: 概ね問題なさそうです！")
		}
	},
}

func reportHost(ctx context.Context) {
	if info, err := host.InfoWithContext(ctx); err == nil {
		log.Printf("🖥  %s %s (%s)", info.Platform, info.PlatformVersion, info.KernelArch)
	}
	physical, _ := cpu.CountsWithContext(ctx, false)
	logical, _ := cpu.CountsWithContext(ctx, true)
	model := ""
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		model = infos[0].ModelName
	}
	log.Printf("   CPU: %s (%d cores / %d threads), 並列数: %d (auto: %d)", model, physical, logical, cfg.EffectiveWorkers(), config.AutoWorkers())
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		log.Printf("   Memory: %s / %s 使用中 (%.0f%%)", formatBytes(int64(vm.Used)), formatBytes(int64(vm.Total)), vm.UsedPercent)
	}
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
