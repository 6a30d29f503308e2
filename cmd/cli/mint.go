package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/config"
	"github.com/retromint/v1/core/history"
	"github.com/retromint/v1/core/mint"
	"github.com/retromint/v1/core/style"
	"github.com/retromint/v1/core/wallet"
	"github.com/retromint/v1/pkg/ux/flows"
	"github.com/retromint/v1/pkg/ux/ui"
)

// passwordEnvVar 非交互模式下读取钱包密码的环境变量
const passwordEnvVar = "RETROMINT_PASSWORD"

var mintFlags struct {
	Image       string
	Keystore    string
	DownloadDir string
	Name        string
	Description string
	Yes         bool
}

// mintCmd 铸造命令
var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "铸造复古风格 PFP",
	Long: `将图片风格化后铸造为 ERC-721 代币。

默认进入交互式流程(选择钱包、确认费用)。
指定 --yes 时进入非交互模式,需要 --image、--keystore,
并通过环境变量 ` + passwordEnvVar + ` 提供钱包密码。`,
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}
		logger := newUILogger(profile)

		// 签名和确认等待没有超时上限（只读RPC的超时由链服务内部控制），
		// 用户通过中断信号取消
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		client, chainSvc, err := dialChainService(profile, logger)
		if err != nil {
			return err
		}
		defer client.Close()

		if err := chainSvc.VerifyChainID(ctx); err != nil {
			return err
		}

		uploader, err := newUploader(profile, logger)
		if err != nil {
			return err
		}

		engine, err := style.NewEngine(style.DefaultOptions(), logger)
		if err != nil {
			return err
		}

		bus := evbus.New()
		controller, err := mint.NewController(engine, uploader, chainSvc, &mint.Config{
			Name:        firstNonEmpty(mintFlags.Name, profile.TokenName),
			Description: firstNonEmpty(mintFlags.Description, profile.TokenDescription),
			Bus:         bus,
		}, logger)
		if err != nil {
			return err
		}

		var result *mint.Result
		if mintFlags.Yes || !ui.IsInteractive() {
			result, err = mintNonInteractive(ctx, controller)
		} else {
			flow := flows.NewMintFlow(ui.NewComponents(nil), &keystoreWalletPort{dir: profile.KeystorePath}, controller, chainSvc, bus)
			result, err = flow.Run(ctx, mintFlags.Image, mintFlags.DownloadDir)
		}
		if err != nil {
			return err
		}
		if result == nil {
			// 用户取消
			return nil
		}

		recordHistory(profile, logger, result)

		return formatter.Print(result)
	},
}

func init() {
	mintCmd.Flags().StringVarP(&mintFlags.Image, "image", "i", "", "源图片路径")
	mintCmd.Flags().StringVarP(&mintFlags.Keystore, "keystore", "k", "", "keystore文件路径(非交互模式)")
	mintCmd.Flags().StringVarP(&mintFlags.DownloadDir, "download-dir", "d", "", "铸造成功后保存风格化图片的目录")
	mintCmd.Flags().StringVar(&mintFlags.Name, "name", "", "代币元数据名称")
	mintCmd.Flags().StringVar(&mintFlags.Description, "description", "", "代币元数据描述")
	mintCmd.Flags().BoolVarP(&mintFlags.Yes, "yes", "y", false, "非交互模式,跳过所有确认")
}

// mintNonInteractive 非交互铸造,用于脚本和CI
func mintNonInteractive(ctx context.Context, controller *mint.Controller) (*mint.Result, error) {
	if mintFlags.Image == "" {
		return nil, fmt.Errorf("非交互模式需要 --image")
	}
	if mintFlags.Keystore == "" {
		return nil, fmt.Errorf("非交互模式需要 --keystore")
	}
	password := os.Getenv(passwordEnvVar)
	if password == "" {
		return nil, fmt.Errorf("非交互模式需要设置环境变量 %s", passwordEnvVar)
	}

	signer, err := wallet.NewKeystoreSigner(mintFlags.Keystore)
	if err != nil {
		return nil, err
	}
	if err := signer.Unlock(password, 10*time.Minute); err != nil {
		return nil, err
	}
	defer signer.Lock()
	controller.ConnectWallet(signer)

	data, err := os.ReadFile(mintFlags.Image)
	if err != nil {
		return nil, fmt.Errorf("读取图片: %w", err)
	}
	if !controller.SelectImage(data) {
		return nil, fmt.Errorf("不支持的图片格式: %s", mintFlags.Image)
	}

	if err := controller.PrepareStyle(ctx); err != nil {
		return nil, err
	}

	result, err := controller.Mint(ctx)
	if err != nil {
		return nil, err
	}

	if mintFlags.DownloadDir != "" {
		styled, serr := controller.RevealedImage()
		name, nerr := controller.DownloadName()
		if serr == nil && nerr == nil {
			path := filepath.Join(mintFlags.DownloadDir, name)
			if werr := os.WriteFile(path, styled.PNG, 0644); werr != nil {
				formatter.PrintWarning(fmt.Sprintf("保存图片失败: %v", werr))
			}
		}
	}
	return result, nil
}

// recordHistory 将铸造结果写入本地历史,失败不影响铸造结果
func recordHistory(profile *config.Profile, logger ui.Logger, result *mint.Result) {
	store, err := history.Open(profile.DataPath, logger)
	if err != nil {
		formatter.PrintWarning(fmt.Sprintf("打开历史存储失败: %v", err))
		return
	}
	defer store.Close()

	if err := store.RecordResult(result); err != nil {
		formatter.PrintWarning(fmt.Sprintf("记录铸造历史失败: %v", err))
	}
}

// keystoreWalletPort 基于本地keystore目录实现钱包端口
type keystoreWalletPort struct {
	dir string
}

func (p *keystoreWalletPort) ListWallets() ([]flows.WalletInfo, error) {
	keystores, err := wallet.ListKeystores(p.dir)
	if err != nil {
		return nil, err
	}

	infos := make([]flows.WalletInfo, 0, len(keystores))
	for _, ks := range keystores {
		infos = append(infos, flows.WalletInfo{
			Path:    filepath.Join(p.dir, strings.ToLower(ks.Address)+".json"),
			Label:   ks.Label,
			Address: common.HexToAddress(ks.Address),
		})
	}
	return infos, nil
}

func (p *keystoreWalletPort) OpenWallet(path string) (flows.WalletUnlocker, error) {
	return wallet.NewKeystoreSigner(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
