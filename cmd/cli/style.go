package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/style"
	"github.com/retromint/v1/pkg/tools/format"
)

var styleFlags struct {
	Output string
}

// styleCmd 风格化预览命令
//
// 离线运行,不需要节点和钱包
var styleCmd = &cobra.Command{
	Use:   "style <image>",
	Short: "预览风格化效果",
	Long:  "将图片转换为复古像素风格并保存为PNG,不进行铸造。",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}
		logger := newUILogger(profile)

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取图片: %w", err)
		}

		engine, err := style.NewEngine(style.DefaultOptions(), logger)
		if err != nil {
			return err
		}

		styled, err := engine.Generate(cmd.Context(), data)
		if err != nil {
			return fmt.Errorf("风格化失败: %w", err)
		}

		outPath := styleFlags.Output
		if outPath == "" {
			base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			outPath = base + "-retro.png"
		}
		if err := os.WriteFile(outPath, styled.PNG, 0644); err != nil {
			return fmt.Errorf("写入 %s: %w", outPath, err)
		}

		formatter.PrintSuccess(fmt.Sprintf("风格化图片已保存: %s", outPath))
		return formatter.Print(map[string]interface{}{
			"output": outPath,
			"width":  styled.Width,
			"height": styled.Height,
			"size":   format.FormatFileSize(int64(len(styled.PNG))),
		})
	},
}

func init() {
	styleCmd.Flags().StringVarP(&styleFlags.Output, "output-file", "f", "", "输出文件路径 (默认: <原名>-retro.png)")
}
