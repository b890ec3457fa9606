package cmd

import (
	"fmt"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/mt4110/rec-split/internal/logger"
	"github.com/mt4110/rec-split/internal/split"
	"github.com/mt4110/rec-split/internal/tui"
	"github.com/mt4110/rec-split/internal/watcher"
)

var tuiCmd = &cobra.Command{
	Use:   "tui [dirs...]",
	Short: "TUIモードで監視・分割を行います (Interactive)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Mute stdout logging to prevent TUI corruption
		logger.MuteStdout()

		ctx, stop := signalContext()
		defer stop()

		if len(args) > 0 {
			cfg.WatchDirs = args
		}
		if len(cfg.WatchDirs) == 0 {
			cfg.WatchDirs = []string{"."}
		}

		eventChan := make(chan interface{}, 100)

		var w *watcher.Watcher
		eng, err := newEngine(ctx, func(p split.Progress) { w.Progress(p) })
		if err != nil {
			return err
		}
		w = watcher.New(cfg, newProcessor(eng))
		w.EventChan = eventChan

		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := w.Run(ctx); err != nil {
				log.Printf("監視エラー: %v", err)
			}
		}()

		m := tui.NewModel(cfg, eventChan)

		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
		_, runErr := p.Run()

		// Cancel running splits and wait for their ffmpeg children.
		stop()
		log.Println("実行中の分割を停止しています")
		drainUntil(done, eventChan)

		if runErr != nil {
			return fmt.Errorf("TUIの実行に失敗: %w", runErr)
		}
		return nil
	},
}

// drainUntil discards events until done is closed. The watcher blocks on
// a full event channel once the TUI stops reading it.
func drainUntil(done <-chan struct{}, events <-chan interface{}) {
	for {
		select {
		case <-done:
			return
		case <-events:
		}
	}
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
