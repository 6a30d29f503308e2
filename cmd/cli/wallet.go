package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/retromint/v1/core/wallet"
	"github.com/retromint/v1/pkg/ux/ui"
)

var walletFlags struct {
	Label      string
	Words24    bool
	Passphrase string
	Path       string
}

// walletCmd 钱包管理命令
var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "钱包管理",
	Long:  "创建、导入和查看本地钱包(keystore加密存储)",
}

// walletCreateCmd 创建新钱包
var walletCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "创建新钱包",
	Long:  "生成BIP39助记词并加密保存为keystore文件。助记词仅显示一次,请妥善备份。",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}

		strength := wallet.Mnemonic12Words
		if walletFlags.Words24 {
			strength = wallet.Mnemonic24Words
		}
		mnemonic, err := wallet.GenerateMnemonic(strength)
		if err != nil {
			return fmt.Errorf("生成助记词: %w", err)
		}

		components := ui.NewComponents(nil)
		components.ShowWarning("请抄写以下助记词并离线保存,丢失后无法恢复钱包:")
		components.ShowPanel("助记词", mnemonic)

		password, err := promptNewPassword(components)
		if err != nil {
			return err
		}

		path, address, err := saveMnemonicKeystore(mnemonic, password, profile.KeystorePath)
		if err != nil {
			return err
		}

		formatter.PrintSuccess(fmt.Sprintf("钱包已创建: %s", address))
		return formatter.Print(map[string]interface{}{
			"address":  address,
			"keystore": path,
			"label":    walletFlags.Label,
		})
	},
}

// walletImportCmd 从助记词导入钱包
var walletImportCmd = &cobra.Command{
	Use:   "import",
	Short: "从助记词导入钱包",
	Long:  "输入BIP39助记词,派生私钥并加密保存为keystore文件。",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}

		components := ui.NewComponents(nil)
		mnemonic, err := components.ShowInputDialog("导入钱包", "请输入助记词(空格分隔)", true)
		if err != nil {
			return err
		}
		if !wallet.ValidateMnemonic(mnemonic) {
			return fmt.Errorf("助记词无效")
		}

		password, err := promptNewPassword(components)
		if err != nil {
			return err
		}

		path, address, err := saveMnemonicKeystore(mnemonic, password, profile.KeystorePath)
		if err != nil {
			return err
		}

		formatter.PrintSuccess(fmt.Sprintf("钱包已导入: %s", address))
		return formatter.Print(map[string]interface{}{
			"address":  address,
			"keystore": path,
		})
	},
}

// walletListCmd 列出本地钱包
var walletListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出本地钱包",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, err := activeProfile()
		if err != nil {
			return fmt.Errorf("获取Profile: %w", err)
		}

		keystores, err := wallet.ListKeystores(profile.KeystorePath)
		if err != nil {
			return err
		}

		rows := make([]map[string]interface{}, 0, len(keystores))
		for _, ks := range keystores {
			rows = append(rows, map[string]interface{}{
				"address":    ks.Address,
				"label":      ks.Label,
				"created_at": ks.CreatedAt,
			})
		}
		return formatter.PrintRows([]string{"address", "label", "created_at"}, rows)
	},
}

func init() {
	walletCreateCmd.Flags().StringVar(&walletFlags.Label, "label", "", "钱包标签")
	walletCreateCmd.Flags().BoolVar(&walletFlags.Words24, "words24", false, "使用24词助记词(默认12词)")
	walletImportCmd.Flags().StringVar(&walletFlags.Label, "label", "", "钱包标签")
	walletImportCmd.Flags().StringVar(&walletFlags.Passphrase, "passphrase", "", "BIP39口令(可选)")
	walletImportCmd.Flags().StringVar(&walletFlags.Path, "path", "", "BIP44派生路径(默认 m/44'/60'/0'/0/0)")

	walletCmd.AddCommand(walletCreateCmd)
	walletCmd.AddCommand(walletImportCmd)
	walletCmd.AddCommand(walletListCmd)
}

// promptNewPassword 提示输入并确认keystore密码
func promptNewPassword(components ui.Components) (string, error) {
	password, err := components.ShowInputDialog("", "请设置keystore密码", true)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(password) == "" {
		return "", fmt.Errorf("密码不能为空")
	}
	confirm, err := components.ShowInputDialog("", "请再次输入密码", true)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", fmt.Errorf("两次输入的密码不一致")
	}
	return password, nil
}

// saveMnemonicKeystore 从助记词派生私钥并写入keystore
func saveMnemonicKeystore(mnemonic, password, dir string) (path, address string, err error) {
	cfg := wallet.MnemonicSignerConfig{
		Mnemonic:   mnemonic,
		Passphrase: walletFlags.Passphrase,
	}
	if walletFlags.Path != "" {
		derivationPath, perr := wallet.ParseDerivationPath(walletFlags.Path)
		if perr != nil {
			return "", "", fmt.Errorf("派生路径无效: %w", perr)
		}
		cfg.Path = derivationPath
	}

	signer, err := wallet.NewMnemonicSigner(cfg)
	if err != nil {
		return "", "", err
	}

	path, err = signer.ExportToKeystore(dir, password, walletFlags.Label)
	if err != nil {
		return "", "", fmt.Errorf("写入keystore: %w", err)
	}
	return path, signer.Address().Hex(), nil
}
