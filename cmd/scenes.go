package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	flagScenesThreshold float64
	flagScenesMinGap    float64
)

var scenesCmd = &cobra.Command{
	Use:   "scenes <file>",
	Short: "シーンの切り替わり時刻を検出します",
	Long:  `ffmpegのシーン検出で切り替わり時刻を一覧表示します。min-gap秒以内の連続した検出は1つにまとめます。`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		eng, err := newEngine(ctx, nil)
		if err != nil {
			return err
		}
		scenes, err := eng.DetectScenes(ctx, args[0], flagScenesThreshold, flagScenesMinGap)
		if err != nil {
			return err
		}

		if len(scenes) == 0 {
			fmt.Println("シーンの切り替わりは検出されませんでした。")
			return nil
		}
		for i, sc := range scenes {
			fmt.Printf("%3d  %s  (%.3fs)\n", i+1, clock(sc.Time), sc.Time)
		}
		return nil
	},
}

func init() {
	scenesCmd.Flags().Float64Var(&flagScenesThreshold, "threshold", 0.3, "シーン検出のしきい値 (0-1)")
	scenesCmd.Flags().Float64Var(&flagScenesMinGap, "min-gap", 0, "シーン間の最小間隔 (秒, 0で既定の2秒)")
	rootCmd.AddCommand(scenesCmd)
}
