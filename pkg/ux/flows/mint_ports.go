// Package flows 提供面向终端用户的交互式流程编排
package flows

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/retromint/v1/core/mint"
	"github.com/retromint/v1/core/style"
)

// WalletInfo 可选钱包的展示信息
type WalletInfo struct {
	Path    string
	Label   string
	Address common.Address
}

// WalletUnlocker 需要解锁后才能签名的钱包会话
type WalletUnlocker interface {
	Address() common.Address
	IsLocked() bool
	Unlock(password string, duration time.Duration) error
	Lock()
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// WalletPort 钱包发现与打开端口
type WalletPort interface {
	// ListWallets 列出可用的本地钱包
	ListWallets() ([]WalletInfo, error)

	// OpenWallet 打开指定路径的钱包（打开后处于锁定状态）
	OpenWallet(path string) (WalletUnlocker, error)
}

// MintPort 铸造服务端口
type MintPort interface {
	ConnectWallet(w mint.WalletSession)
	SelectImage(data []byte) bool
	PrepareStyle(ctx context.Context) error
	CanMint(ctx context.Context) (bool, []string)
	Mint(ctx context.Context) (*mint.Result, error)
	RevealedImage() (*style.StyledImage, error)
	DownloadName() (string, error)
	ShareURL() (string, error)
}

// FeePort 链上铸造费用查询端口
type FeePort interface {
	MintFee(ctx context.Context) (*big.Int, error)
}
