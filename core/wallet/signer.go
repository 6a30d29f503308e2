// Package wallet provides wallet signing functionality for client operations.
package wallet

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Signer 签名器接口 - 统一的签名抽象
//
// 铸造流程只依赖此接口：链上交互层从不接触私钥
type Signer interface {
	// Address 获取签名地址
	Address() common.Address

	// SignTx 对交易签名
	// chainID: 用于EIP-155重放保护
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

	// Unlock 解锁签名器
	// password: 解锁密码
	// duration: 解锁时长，0表示永久解锁(直到调用Lock)
	Unlock(password string, duration time.Duration) error

	// Lock 锁定签名器（清除内存中的私钥）
	Lock()

	// IsLocked 检查是否已锁定
	IsLocked() bool

	// Type 返回签名器类型
	Type() SignerType
}

// SignerType 签名器类型
type SignerType string

const (
	SignerTypeKeystore SignerType = "keystore" // 加密Keystore文件
	SignerTypeMnemonic SignerType = "mnemonic" // BIP39助记词导入
)
