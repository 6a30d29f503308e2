package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/chain"
	"github.com/retromint/v1/core/config"
	"github.com/retromint/v1/core/output"
	"github.com/retromint/v1/core/storage"
	"github.com/retromint/v1/pkg/logging"
	"github.com/retromint/v1/pkg/ux/ui"
)

// GlobalFlags 全局标志
type GlobalFlags struct {
	Profile      string // Profile名称
	ConfigDir    string // 配置目录
	OutputFormat string // 输出格式
	Silent       bool   // 静默模式
	Verbose      bool   // 详细模式
}

var (
	globalFlags GlobalFlags
	profileMgr  *config.ProfileManager
	formatter   *output.Formatter
)

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "retromint",
	Short: "RetroMint 复古风格 PFP 铸造工具",
	Long: `RetroMint CLI - 复古像素风格头像铸造工具

将任意图片转换为复古像素风格的头像,上传到去中心化存储,
并在链上铸造为 ERC-721 代币:
- 图片风格化(像素化 + 扫描线 + 复古色调)
- 本地钱包管理(keystore / 助记词)
- 去中心化存储上传与元数据生成
- 链上铸造、确认追踪与结果揭示
- 本地铸造历史记录

支持多环境Profile配置(local/sepolia/mainnet)。`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 初始化配置管理器
		var err error
		profileMgr, err = config.NewProfileManager(globalFlags.ConfigDir)
		if err != nil {
			return fmt.Errorf("初始化配置: %w", err)
		}

		// 初始化输出格式化器
		format, err := output.ParseFormat(globalFlags.OutputFormat)
		if err != nil {
			return err
		}
		formatter = output.NewFormatter(format, os.Stdout)
		formatter.SetSilent(globalFlags.Silent)

		return nil
	},
}

// Execute 执行根命令
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// 全局标志
	rootCmd.PersistentFlags().StringVar(&globalFlags.Profile, "profile", "", "使用指定的Profile (默认使用当前Profile)")
	rootCmd.PersistentFlags().StringVar(&globalFlags.ConfigDir, "config-dir", "", "配置目录 (默认: ~/.retromint)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.OutputFormat, "output", "o", "pretty", "输出格式: json|pretty|table|text")
	rootCmd.PersistentFlags().BoolVar(&globalFlags.Silent, "silent", false, "静默模式 (仅输出结果)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "详细输出")

	// 添加子命令
	rootCmd.AddCommand(mintCmd)
	rootCmd.AddCommand(styleCmd)
	rootCmd.AddCommand(walletCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(profileCmd)
}

// activeProfile 获取当前生效的profile
func activeProfile() (*config.Profile, error) {
	if globalFlags.Profile != "" {
		return profileMgr.GetProfile(globalFlags.Profile)
	}
	return profileMgr.GetCurrentProfile()
}

// newUILogger 根据profile构建日志器
func newUILogger(profile *config.Profile) ui.Logger {
	opts := logging.DefaultOptions()
	opts.Level = profile.LogLevel
	opts.FilePath = profile.LogFile
	opts.ToConsole = profile.LogToConsole
	if globalFlags.Verbose {
		opts.Level = "debug"
		opts.ToConsole = true
	}
	return logging.NewUILogger(opts)
}

// dialChainService 连接节点并构建合约服务
//
// 返回的client由调用方负责关闭
func dialChainService(profile *config.Profile, logger ui.Logger) (*ethclient.Client, *chain.Service, error) {
	client, err := ethclient.Dial(profile.RPCEndpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("连接节点 %s: %w", profile.RPCEndpoint, err)
	}

	svc, err := chain.NewService(client, &chain.Config{
		Address:             profile.Contract.Address,
		ChainID:             profile.ChainID,
		HasMintedCheck:      profile.Contract.HasMintedCheck,
		GasLimit:            profile.Contract.GasLimit,
		ReceiptPollInterval: time.Duration(profile.ReceiptPollInterval),
		RequestTimeout:      time.Duration(profile.Timeout),
	}, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, svc, nil
}

// newUploader 根据profile构建存储上传器
func newUploader(profile *config.Profile, logger ui.Logger) (storage.Uploader, error) {
	return storage.NewUploader(&storage.Config{
		Endpoint:     profile.Storage.Endpoint,
		Token:        profile.Storage.Token,
		AllowDataURI: profile.Storage.AllowDataURI,
		Timeout:      time.Duration(profile.Storage.Timeout),
	}, logger)
}
