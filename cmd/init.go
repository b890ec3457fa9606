package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"

	"github.com/mt4110/rec-split/internal/config"
)

var flagInitForce bool

const configTemplate = `# rec-split 設定ファイル
# コマンドラインのフラグはここでの設定より優先されます。

# 出力先 (batchStamp: true なら日付ディレクトリを作成)
destDir: {{.DestDir}}
batchStamp: {{.BatchStamp}}
format: {{.Format}}

# 分割方法 mode: time | count | scene | manual
split:
  mode: {{.Split.Mode}}
  interval: {{.Split.Interval}}   # time: 秒
  count: {{.Split.Count}}         # count: 等分する数
  threshold: {{.Split.Threshold}} # scene: 0-1
  minGap: {{.Split.MinGap}}       # scene: 秒 (0で2秒)
  points: []                      # manual: [12.5, 40]
copy: false                       # scene: ストリームコピーで高速に分割

# 再エンコード設定
videoCodec: {{.VideoCodec}}
audioCodec: {{.AudioCodec}}
preset: {{.Preset}}
crf: {{.CRF}}

workers: {{.Workers}}                # 0 で自動 (物理コア数-1)
continueOnError: false

# 監視モード (rec-split --watch / rec-split tui)
watchDirs: []
keywords: []
ignoreKeywords: []
notify: {{.Notify}}

# ffmpegBin: /opt/homebrew/bin/ffmpeg
# ffprobeBin: /opt/homebrew/bin/ffprobe
# logFile: ~/Library/Logs/rec-split.log

profiles:
  archive:
    crf: 28
    preset: slow
  preview:
    crf: 32
    preset: veryfast
`

func writeConfig(w io.Writer, c *config.Config) error {
	t := template.Must(template.New("config").Parse(configTemplate))
	return t.Execute(w, c)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "設定ファイルを作成します",
	Long:  `~/.config/rec-split/config.yaml に既定値入りの設定ファイルを作成します。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, err := config.Path()
		if err != nil {
			return fmt.Errorf("ホームディレクトリの取得に失敗: %w", err)
		}
		if _, err := os.Stat(configPath); err == nil && !flagInitForce {
			log.Printf("設定ファイルはすでに存在します: %s (上書きするには --force)", configPath)
			return nil
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("ディレクトリ作成失敗: %w", err)
		}
		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("設定ファイルの作成に失敗: %w", err)
		}
		if err := writeConfig(f, config.NewDefault()); err != nil {
			f.Close()
			return fmt.Errorf("設定ファイルの書き込みに失敗: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		log.Printf("✅ 設定ファイルを作成: %s", configPath)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&flagInitForce, "force", false, "既存の設定ファイルを上書きする")
	rootCmd.AddCommand(initCmd)
}
