package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagFrameAt  float64
	flagFrameOut string
)

var frameCmd = &cobra.Command{
	Use:   "frame <file>",
	Short: "指定時刻のフレームを画像として保存します",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		out := flagFrameOut
		if out == "" {
			out = frameOutput(args[0], cfg.DestDir, flagFrameAt)
		}

		eng, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		written, err := eng.ExtractFrame(ctx, args[0], flagFrameAt, out)
		if err != nil {
			return err
		}
		fmt.Println(written)
		return nil
	},
}

// frameOutput is "<dest>/<stem>_frame_<ms>.jpg".
func frameOutput(source, dest string, at float64) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dest, fmt.Sprintf("%s_frame_%d.jpg", stem, int64(at*1000)))
}

func init() {
	frameCmd.Flags().Float64Var(&flagFrameAt, "at", 0, "切り出す時刻 (秒)")
	frameCmd.Flags().StringVarP(&flagFrameOut, "out", "o", "", "出力する画像ファイル (既定: <dest>/<名前>_frame_<ミリ秒>.jpg)")
	rootCmd.AddCommand(frameCmd)
}
