package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var flagProbeJSON bool

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "動画のメタデータを表示します",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		eng, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		info, err := eng.Probe(ctx, args[0])
		if err != nil {
			return err
		}

		if flagProbeJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		}

		const separator = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
		fmt.Println(separator)
		fmt.Printf("📼 %s\n", info.Filename)
		fmt.Println(separator)
		fmt.Printf("長さ:         %s (%.3fs)\n", formatDuration(info.Duration), info.Duration)
		fmt.Printf("解像度:       %s\n", info.Resolution())
		fmt.Printf("フレームレート: %.3f fps\n", info.FPS)
		fmt.Printf("ビットレート: %d bps\n", info.Bitrate)
		fmt.Printf("コンテナ:     %s\n", info.Format)
		fmt.Printf("サイズ:       %s\n", formatBytes(info.Size))
		fmt.Printf("映像:         %s\n", info.VideoCodec)
		fmt.Printf("音声:         %s\n", orDash(info.AudioCodec))
		fmt.Println(separator)
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// clock renders seconds as H:MM:SS.mmm.
func clock(sec float64) string {
	d := time.Duration(sec * float64(time.Second)).Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

func init() {
	probeCmd.Flags().BoolVar(&flagProbeJSON, "json", false, "JSONで出力する")
	rootCmd.AddCommand(probeCmd)
}
