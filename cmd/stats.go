package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mt4110/rec-split/internal/logger"
)

type LogEntry struct {
	Type        string   `json:"type"`
	JobID       string   `json:"job_id"`
	Input       string   `json:"input"`
	Success     bool     `json:"success"`
	Planned     int      `json:"segments_planned"`
	OutputFiles []string `json:"output_files"`
	Errors      []string `json:"errors"`
	DurationSec float64  `json:"duration_sec"`
	Timestamp   string   `json:"timestamp"`
}

type splitStats struct {
	Jobs          int
	Succeeded     int
	Failed        int
	Planned       int
	Segments      int
	TotalDuration float64
	LastFailure   string
}

// aggregate sums the split_result lines of a log. Lines carry the std log
// prefix, so the JSON starts at the first '{'.
func aggregate(r io.Reader) (splitStats, error) {
	var s splitStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		idx := strings.Index(line, "{")
		if idx == -1 {
			continue
		}

		var entry LogEntry
		if err := json.Unmarshal([]byte(line[idx:]), &entry); err != nil {
			continue
		}
		if entry.Type != "split_result" {
			continue
		}

		s.Jobs++
		s.Planned += entry.Planned
		s.Segments += len(entry.OutputFiles)
		s.TotalDuration += entry.DurationSec
		if entry.Success {
			s.Succeeded++
		} else {
			s.Failed++
			if len(entry.Errors) > 0 {
				s.LastFailure = entry.Input + ": " + entry.Errors[0]
			}
		}
	}
	return s, scanner.Err()
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "分割統計を表示します",
	Long:  `過去の分割履歴(ログファイル)を集計し、ジョブ数・セグメント数・処理時間を表示します。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logPath := logger.DefaultPath()
		if cfg != nil && cfg.LogFile != "" {
			logPath = cfg.LogFile
		}

		f, err := os.Open(logPath)
		if err != nil {
			return fmt.Errorf("ログファイルを開けませんでした: %w", err)
		}
		defer f.Close()

		s, err := aggregate(f)
		if err != nil {
			return fmt.Errorf("ログファイルの読み込みに失敗: %w", err)
		}

		const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
		fmt.Println(separator)
		fmt.Printf("📊 RecSplit 統計レポート\n")
		fmt.Println(separator)
		fmt.Printf("総ジョブ数:     %d 本 (成功 %d / 失敗 %d)\n", s.Jobs, s.Succeeded, s.Failed)
		fmt.Printf("出力セグメント: %d / %d\n", s.Segments, s.Planned)
		fmt.Printf("合計処理時間:   %s\n", formatDuration(s.TotalDuration))
		if s.Jobs > 0 {
			fmt.Printf("平均処理時間:   %s/本\n", formatDuration(s.TotalDuration/float64(s.Jobs)))
		}
		if s.LastFailure != "" {
			fmt.Printf("直近の失敗:     %s\n", s.LastFailure)
		}
		fmt.Println(separator)
		return nil
	},
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

func formatDuration(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
	return d.String()
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
