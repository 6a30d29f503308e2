package wallet

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip39"
)

// MnemonicStrength 助记词强度
type MnemonicStrength int

const (
	// Mnemonic12Words 12个助记词 (128 bits 熵)
	Mnemonic12Words MnemonicStrength = 128
	// Mnemonic24Words 24个助记词 (256 bits 熵)
	Mnemonic24Words MnemonicStrength = 256
)

// BIP44 相关常量
const (
	// EthCoinType 以太坊的 BIP44 Coin Type (SLIP-0044)
	EthCoinType uint32 = 60

	// BIP44Purpose BIP44 标准的 purpose 值
	BIP44Purpose uint32 = 44

	// HardenedOffset 硬化派生偏移量
	HardenedOffset uint32 = 0x80000000
)

// DerivationPath BIP32/BIP44 派生路径
type DerivationPath struct {
	Purpose      uint32 `json:"purpose"`
	CoinType     uint32 `json:"coin_type"`
	Account      uint32 `json:"account"`
	Change       uint32 `json:"change"`
	AddressIndex uint32 `json:"address_index"`
}

// DefaultDerivationPath 返回默认派生路径
// m/44'/60'/0'/0/0
func DefaultDerivationPath() *DerivationPath {
	return &DerivationPath{
		Purpose:  BIP44Purpose,
		CoinType: EthCoinType,
	}
}

// ParseDerivationPath 解析派生路径字符串
// 支持格式: m/44'/60'/0'/0/0 或 44'/60'/0'/0/0
func ParseDerivationPath(path string) (*DerivationPath, error) {
	path = strings.TrimPrefix(path, "m/")
	path = strings.TrimPrefix(path, "M/")

	parts := strings.Split(path, "/")
	if len(parts) != 5 {
		return nil, fmt.Errorf("invalid derivation path: expected 5 components, got %d", len(parts))
	}

	dp := &DerivationPath{}
	var err error

	dp.Purpose, err = parsePathComponent(parts[0], true)
	if err != nil {
		return nil, fmt.Errorf("invalid purpose: %w", err)
	}
	if dp.Purpose != BIP44Purpose {
		return nil, fmt.Errorf("invalid purpose: expected %d (BIP44), got %d", BIP44Purpose, dp.Purpose)
	}

	dp.CoinType, err = parsePathComponent(parts[1], true)
	if err != nil {
		return nil, fmt.Errorf("invalid coin type: %w", err)
	}

	dp.Account, err = parsePathComponent(parts[2], true)
	if err != nil {
		return nil, fmt.Errorf("invalid account: %w", err)
	}

	dp.Change, err = parsePathComponent(parts[3], false)
	if err != nil {
		return nil, fmt.Errorf("invalid change: %w", err)
	}
	if dp.Change > 1 {
		return nil, fmt.Errorf("invalid change: expected 0 or 1, got %d", dp.Change)
	}

	dp.AddressIndex, err = parsePathComponent(parts[4], false)
	if err != nil {
		return nil, fmt.Errorf("invalid address index: %w", err)
	}

	return dp, nil
}

// parsePathComponent 解析路径组件
// requireHardened: 是否要求硬化派生
func parsePathComponent(component string, requireHardened bool) (uint32, error) {
	isHardened := strings.HasSuffix(component, "'") || strings.HasSuffix(component, "H") || strings.HasSuffix(component, "h")

	if requireHardened && !isHardened {
		return 0, fmt.Errorf("hardened derivation required for %s", component)
	}

	component = strings.TrimSuffix(component, "'")
	component = strings.TrimSuffix(component, "H")
	component = strings.TrimSuffix(component, "h")

	value, err := strconv.ParseUint(component, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number: %s", component)
	}

	return uint32(value), nil
}

// String 返回路径字符串表示
func (dp *DerivationPath) String() string {
	return fmt.Sprintf("m/%d'/%d'/%d'/%d/%d",
		dp.Purpose,
		dp.CoinType,
		dp.Account,
		dp.Change,
		dp.AddressIndex,
	)
}

// ToUint32Array 转换为 uint32 数组（用于 hdkeychain）
// 返回包含硬化标记的完整路径
func (dp *DerivationPath) ToUint32Array() []uint32 {
	return []uint32{
		dp.Purpose + HardenedOffset,  // 硬化
		dp.CoinType + HardenedOffset, // 硬化
		dp.Account + HardenedOffset,  // 硬化
		dp.Change,                    // 非硬化
		dp.AddressIndex,              // 非硬化
	}
}

// WithAddressIndex 返回使用指定地址索引的新路径
func (dp *DerivationPath) WithAddressIndex(index uint32) *DerivationPath {
	newPath := *dp
	newPath.AddressIndex = index
	return &newPath
}

// GenerateMnemonic 生成助记词
// strength: 熵的位数，支持 128(12词) 或 256(24词)
func GenerateMnemonic(strength MnemonicStrength) (string, error) {
	switch strength {
	case Mnemonic12Words, Mnemonic24Words:
		// 有效强度
	default:
		return "", fmt.Errorf("invalid mnemonic strength: %d, must be 128 or 256", strength)
	}

	entropy := make([]byte, int(strength)/8)
	if _, err := rand.Read(entropy); err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic 验证助记词是否有效
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(normalizeMnemonic(mnemonic))
}

// MnemonicToSeed 将助记词转换为种子
// passphrase 是可选的 BIP39 密码
func MnemonicToSeed(mnemonic, passphrase string) ([]byte, error) {
	mnemonic = normalizeMnemonic(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}

	// PBKDF2 with HMAC-SHA512
	return bip39.NewSeed(mnemonic, passphrase), nil
}

// normalizeMnemonic 规范化助记词（去除首尾空白、合并连续空格）
func normalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(mnemonic), " ")
}
