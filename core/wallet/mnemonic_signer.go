package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// MnemonicSigner 助记词签名器实现
//
// 助记词保存在内存中，解锁时才派生私钥
type MnemonicSigner struct {
	mnemonic   string
	passphrase string // BIP39 密码
	path       *DerivationPath
	address    common.Address

	mu          sync.RWMutex
	privateKey  *ecdsa.PrivateKey
	unlockUntil time.Time
}

// MnemonicSignerConfig 助记词签名器配置
type MnemonicSignerConfig struct {
	Mnemonic   string          // 助记词
	Passphrase string          // BIP39 密码（可选）
	Path       *DerivationPath // 派生路径（可选，默认为 m/44'/60'/0'/0/0）
}

// NewMnemonicSigner 创建助记词签名器
//
// 创建时即派生一次以确定地址，随后清除私钥直到 Unlock
func NewMnemonicSigner(config MnemonicSignerConfig) (*MnemonicSigner, error) {
	if config.Mnemonic == "" {
		return nil, errors.New("mnemonic is required")
	}
	if !ValidateMnemonic(config.Mnemonic) {
		return nil, errors.New("invalid mnemonic")
	}

	path := config.Path
	if path == nil {
		path = DefaultDerivationPath()
	}

	s := &MnemonicSigner{
		mnemonic:   normalizeMnemonic(config.Mnemonic),
		passphrase: config.Passphrase,
		path:       path,
	}

	privateKey, err := s.derive()
	if err != nil {
		return nil, err
	}
	s.address = crypto.PubkeyToAddress(privateKey.PublicKey)

	return s, nil
}

// derive 从助记词派生路径对应的私钥
func (s *MnemonicSigner) derive() (*ecdsa.PrivateKey, error) {
	seed, err := MnemonicToSeed(s.mnemonic, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("mnemonic to seed: %w", err)
	}

	// 使用 Bitcoin mainnet 参数（仅用于 HD 派生，不影响地址格式）
	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("create master key: %w", err)
	}

	for _, index := range s.path.ToUint32Array() {
		key, err = key.Derive(index)
		if err != nil {
			return nil, fmt.Errorf("derive key: %w", err)
		}
	}

	privKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("get private key: %w", err)
	}

	return privKey.ToECDSA(), nil
}

// Address 实现 Signer 接口
func (s *MnemonicSigner) Address() common.Address {
	return s.address
}

// Path 返回派生路径字符串
func (s *MnemonicSigner) Path() string {
	return s.path.String()
}

// Unlock 实现 Signer 接口
//
// 助记词签名器不需要密码，password 参数被忽略
func (s *MnemonicSigner) Unlock(_ string, duration time.Duration) error {
	privateKey, err := s.derive()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.privateKey = privateKey
	if duration == 0 {
		s.unlockUntil = time.Time{}
	} else {
		s.unlockUntil = time.Now().Add(duration)
	}
	return nil
}

// Lock 实现 Signer 接口
func (s *MnemonicSigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// 清除内存中的私钥
	if s.privateKey != nil && s.privateKey.D != nil {
		s.privateKey.D.SetInt64(0)
	}
	s.privateKey = nil
	s.unlockUntil = time.Time{}
}

// IsLocked 实现 Signer 接口
func (s *MnemonicSigner) IsLocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.privateKey == nil {
		return true
	}
	if !s.unlockUntil.IsZero() && time.Now().After(s.unlockUntil) {
		return true
	}
	return false
}

// SignTx 实现 Signer 接口
func (s *MnemonicSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.privateKey == nil || (!s.unlockUntil.IsZero() && time.Now().After(s.unlockUntil)) {
		return nil, fmt.Errorf("signer is locked")
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

// Type 实现 Signer 接口
func (s *MnemonicSigner) Type() SignerType {
	return SignerTypeMnemonic
}

// ExportToKeystore 将派生私钥导出为加密keystore文件
func (s *MnemonicSigner) ExportToKeystore(dir, password, label string) (string, error) {
	privateKey, err := s.derive()
	if err != nil {
		return "", err
	}
	defer privateKey.D.SetInt64(0)

	return CreateKeystore(dir, password, label, privateKey)
}

var _ Signer = (*MnemonicSigner)(nil)
var _ Signer = (*KeystoreSigner)(nil)
