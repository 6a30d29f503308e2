package flows

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	evbus "github.com/asaskevich/EventBus"

	"github.com/retromint/v1/core/mint"
	"github.com/retromint/v1/pkg/tools/format"
	"github.com/retromint/v1/pkg/ux/ui"
)

// 解锁有效期，覆盖一次完整的铸造流程
const unlockDuration = 10 * time.Minute

// stageText 铸造各阶段的进度文本
var stageText = map[mint.State]string{
	mint.StateUploading:            "正在上传风格图与元数据...",
	mint.StateAwaitingSignature:    "正在签名并提交交易...",
	mint.StateAwaitingConfirmation: "等待链上确认...",
}

// MintFlow 交互式铸造流程
//
// 编排完整的用户旅程：选择钱包 → 解锁 → 选择图片 →
// 风格化预览 → 确认费用 → 铸造 → 揭示结果
type MintFlow struct {
	components ui.Components
	wallets    WalletPort
	minter     MintPort
	fees       FeePort
	bus        evbus.Bus
}

// NewMintFlow 创建铸造流程
//
// bus 为铸造服务发布状态变更的事件总线（可为nil，此时进度文本不随
// 状态更新）
func NewMintFlow(components ui.Components, wallets WalletPort, minter MintPort, fees FeePort, bus evbus.Bus) *MintFlow {
	return &MintFlow{
		components: components,
		wallets:    wallets,
		minter:     minter,
		fees:       fees,
		bus:        bus,
	}
}

// Run 执行交互式铸造流程
//
// imagePath 为空时提示用户输入；downloadDir 为空时跳过下载询问。
func (f *MintFlow) Run(ctx context.Context, imagePath, downloadDir string) (*mint.Result, error) {
	f.components.ShowHeader("RetroMint — 复古风格 PFP 铸造")

	// ===== 第一步：选择并解锁钱包 =====
	wallet, err := f.selectWallet()
	if err != nil {
		return nil, err
	}

	if err := f.unlockWallet(wallet); err != nil {
		return nil, err
	}
	defer wallet.Lock()

	f.minter.ConnectWallet(wallet)
	f.components.ShowInfo(fmt.Sprintf("已连接钱包: %s", format.FormatAddress(wallet.Address().Hex(), 8, 8)))

	// ===== 第二步：选择图片 =====
	if imagePath == "" {
		imagePath, err = f.components.ShowInputDialog("选择图片", "请输入图片文件路径", false)
		if err != nil {
			return nil, err
		}
		imagePath = strings.TrimSpace(imagePath)
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		f.components.ShowError(fmt.Sprintf("读取图片失败: %v", err))
		return nil, fmt.Errorf("read image %s: %w", imagePath, err)
	}
	if !f.minter.SelectImage(data) {
		f.components.ShowError("该文件不是可识别的图片格式")
		return nil, fmt.Errorf("unsupported image file: %s", imagePath)
	}
	f.components.ShowInfo(fmt.Sprintf("已选择图片: %s (%s)", filepath.Base(imagePath), format.FormatFileSize(int64(len(data)))))

	// ===== 第三步：生成风格化图像 =====
	spinner := f.components.ShowSpinner("正在生成复古风格化图像...")
	spinner.Start()
	if err := f.minter.PrepareStyle(ctx); err != nil {
		spinner.Fail("风格化失败")
		return nil, fmt.Errorf("prepare style: %w", err)
	}
	spinner.Success("风格化完成")

	// ===== 第四步：费用确认 =====
	fee, err := f.fees.MintFee(ctx)
	if err != nil {
		f.components.ShowError(fmt.Sprintf("查询铸造费用失败: %v", err))
		return nil, fmt.Errorf("query mint fee: %w", err)
	}

	if ok, reasons := f.minter.CanMint(ctx); !ok {
		for _, reason := range reasons {
			f.components.ShowWarning(reason)
		}
		return nil, fmt.Errorf("mint preconditions not met: %s", strings.Join(reasons, "; "))
	}

	confirmed, err := f.components.ShowConfirmDialog("铸造确认",
		fmt.Sprintf("铸造费用: %s ETH，费用将从钱包 %s 扣除",
			format.FormatWei(fee), format.FormatAddress(wallet.Address().Hex(), 8, 8)))
	if err != nil {
		return nil, err
	}
	if !confirmed {
		f.components.ShowInfo("已取消铸造")
		return nil, nil
	}

	// ===== 第五步：铸造 =====
	spinner = f.components.ShowSpinner("正在铸造...")
	spinner.Start()

	// 订阅状态变更，按阶段更新进度文本
	if f.bus != nil {
		handler := func(change mint.StateChange) {
			if text, ok := stageText[change.To]; ok {
				spinner.UpdateText(text)
			}
		}
		if err := f.bus.Subscribe(mint.TopicStateChanged, handler); err == nil {
			defer f.bus.Unsubscribe(mint.TopicStateChanged, handler)
		}
	}

	result, err := f.minter.Mint(ctx)
	if err != nil {
		spinner.Fail("铸造失败")
		return nil, fmt.Errorf("mint: %w", err)
	}
	spinner.Success("铸造成功")

	// ===== 第六步：揭示结果 =====
	f.showResult(result)

	if downloadDir != "" {
		if err := f.offerDownload(downloadDir); err != nil {
			f.components.ShowWarning(fmt.Sprintf("保存图片失败: %v", err))
		}
	}

	return result, nil
}

// selectWallet 列出本地钱包并让用户选择
func (f *MintFlow) selectWallet() (WalletUnlocker, error) {
	infos, err := f.wallets.ListWallets()
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	if len(infos) == 0 {
		f.components.ShowError("未找到本地钱包，请先使用 'retromint wallet create' 创建")
		return nil, fmt.Errorf("no wallets available")
	}

	options := make([]string, len(infos))
	for i, info := range infos {
		label := info.Label
		if label == "" {
			label = "未命名"
		}
		options[i] = fmt.Sprintf("%s (%s)", label, format.FormatAddress(info.Address.Hex(), 8, 8))
	}

	idx, err := f.components.ShowMenu("选择钱包", options)
	if err != nil {
		return nil, err
	}

	return f.wallets.OpenWallet(infos[idx].Path)
}

// unlockWallet 提示密码并解锁，最多重试三次
func (f *MintFlow) unlockWallet(wallet WalletUnlocker) error {
	for attempt := 1; attempt <= 3; attempt++ {
		password, err := f.components.ShowInputDialog("解锁钱包", "请输入钱包密码", true)
		if err != nil {
			return err
		}
		if err := wallet.Unlock(password, unlockDuration); err == nil {
			return nil
		}
		f.components.ShowWarning(fmt.Sprintf("密码错误 (%d/3)", attempt))
	}
	return fmt.Errorf("wallet unlock failed after 3 attempts")
}

// showResult 展示铸造结果面板
func (f *MintFlow) showResult(result *mint.Result) {
	f.components.ShowSuccess(fmt.Sprintf("RetroMint PFP #%s 铸造完成！", result.TokenID.String()))

	content := fmt.Sprintf("Token ID:  #%s\n交易哈希:   %s\n元数据:     %s\n图像 CID:   %s",
		result.TokenID.String(),
		format.FormatHashShort(result.TxHash.Hex(), 10, 8),
		result.TokenURI,
		result.ImageCID)
	f.components.ShowPanel("铸造结果", content)

	if shareURL, err := f.minter.ShareURL(); err == nil {
		f.components.ShowInfo(fmt.Sprintf("分享链接: %s", shareURL))
	}
}

// offerDownload 询问是否保存风格化图片到本地
func (f *MintFlow) offerDownload(dir string) error {
	save, err := f.components.ShowConfirmDialog("", "是否将风格化图片保存到本地？")
	if err != nil || !save {
		return err
	}

	styled, err := f.minter.RevealedImage()
	if err != nil {
		return err
	}
	name, err := f.minter.DownloadName()
	if err != nil {
		return err
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, styled.PNG, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	f.components.ShowSuccess(fmt.Sprintf("图片已保存: %s", path))
	return nil
}
