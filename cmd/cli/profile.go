package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/config"
)

// profileCmd Profile管理命令
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Profile管理",
	Long:  "管理配置Profile,支持多环境切换(local/sepolia/mainnet)",
}

// profileListCmd 列出所有profiles
var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出所有profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles := profileMgr.ListProfiles()
		current := profileMgr.CurrentProfileName()

		var rows []map[string]interface{}
		for _, name := range profiles {
			profile, err := profileMgr.GetProfile(name)
			if err != nil {
				continue
			}
			rows = append(rows, map[string]interface{}{
				"name":     name,
				"chain_id": profile.ChainID,
				"rpc":      profile.RPCEndpoint,
				"current":  name == current,
			})
		}
		return formatter.PrintRows([]string{"name", "chain_id", "rpc", "current"}, rows)
	},
}

// profileShowCmd 显示profile详情
var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "显示profile详情",
	Long:  "显示指定profile的详细配置(不指定则显示当前profile)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var profile *config.Profile
		var err error

		if len(args) > 0 {
			profile, err = profileMgr.GetProfile(args[0])
		} else {
			profile, err = profileMgr.GetCurrentProfile()
		}
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.Print(profile)
	},
}

// profileSwitchCmd 切换profile
var profileSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "切换profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := profileMgr.SwitchProfile(name); err != nil {
			formatter.PrintError(err)
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("已切换到 profile '%s'", name))
		return nil
	},
}

// profileCurrentCmd 显示当前profile
var profileCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "显示当前profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := profileMgr.GetCurrentProfile()
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.Print(map[string]interface{}{
			"name":     profile.Name,
			"chain_id": profile.ChainID,
			"rpc":      profile.RPCEndpoint,
		})
	},
}

// profileImportCmd 从JSON文件导入profile
var profileImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "导入profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("读取文件失败: %w", err)
		}

		var profile config.Profile
		if err := json.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("解析JSON失败: %w", err)
		}

		if _, err := profileMgr.GetProfile(profile.Name); err == nil {
			return fmt.Errorf("profile '%s' 已存在", profile.Name)
		}

		if err := profileMgr.SaveProfile(&profile); err != nil {
			return fmt.Errorf("保存 profile 失败: %w", err)
		}
		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 导入成功", profile.Name))
		return nil
	},
}

// profileExportCmd 导出profile为JSON文件
var profileExportCmd = &cobra.Command{
	Use:   "export <name> [file]",
	Short: "导出profile",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		profile, err := profileMgr.GetProfile(name)
		if err != nil {
			return fmt.Errorf("获取 profile 失败: %w", err)
		}

		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return fmt.Errorf("序列化JSON失败: %w", err)
		}

		outputFile := name + "-profile.json"
		if len(args) > 1 {
			outputFile = args[1]
		}
		if err := os.WriteFile(outputFile, data, 0600); err != nil {
			return fmt.Errorf("写入文件失败: %w", err)
		}
		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 已导出到 %s", name, outputFile))
		return nil
	},
}

// profileDeleteCmd 删除profile
var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "删除profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if err := profileMgr.DeleteProfile(name); err != nil {
			return fmt.Errorf("删除 profile 失败: %w", err)
		}
		formatter.PrintSuccess(fmt.Sprintf("Profile '%s' 已删除", name))
		return nil
	},
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileSwitchCmd)
	profileCmd.AddCommand(profileCurrentCmd)
	profileCmd.AddCommand(profileImportCmd)
	profileCmd.AddCommand(profileExportCmd)
	profileCmd.AddCommand(profileDeleteCmd)
}
