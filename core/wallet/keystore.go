package wallet

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"
)

// KeystoreV1 Keystore文件格式(v1.0.0)
type KeystoreV1 struct {
	Version string   `json:"version"` // "1.0.0"
	ID      string   `json:"id"`      // UUID
	Address string   `json:"address"` // 0x...
	Crypto  CryptoV1 `json:"crypto"`

	// 元数据
	CreatedAt string `json:"created_at"`
	Label     string `json:"label,omitempty"`
}

// CryptoV1 加密参数
type CryptoV1 struct {
	Cipher       string       `json:"cipher"`     // "aes-256-gcm"
	Ciphertext   string       `json:"ciphertext"` // hex编码
	CipherParams CipherParams `json:"cipherparams"`
	KDF          string       `json:"kdf"` // "pbkdf2"
	KDFParams    KDFParams    `json:"kdfparams"`
	MAC          string       `json:"mac"` // hex编码的MAC
}

// CipherParams 密码参数
type CipherParams struct {
	IV string `json:"iv"` // hex编码的GCM nonce
}

// KDFParams 密钥派生参数
type KDFParams struct {
	DKLen int    `json:"dklen"` // 派生密钥长度(32)
	Salt  string `json:"salt"`  // hex编码的盐值
	C     int    `json:"c"`     // 迭代次数
	PRF   string `json:"prf"`   // "hmac-sha256"
}

const (
	keystoreVersion = "1.0.0"
	kdfIterations   = 262144
)

// CreateKeystore 将私钥加密写入keystore文件
//
// 文件名格式: <address>.json, 权限0600
func CreateKeystore(dir string, password string, label string, privateKey *ecdsa.PrivateKey) (string, error) {
	if password == "" {
		return "", fmt.Errorf("keystore password must not be empty")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create keystore dir: %w", err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	salt := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, kdfIterations, 32, sha256.New)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, crypto.FromECDSA(privateKey), nil)

	ks := &KeystoreV1{
		Version: keystoreVersion,
		ID:      uuid.NewString(),
		Address: address.Hex(),
		Crypto: CryptoV1{
			Cipher:     "aes-256-gcm",
			Ciphertext: hex.EncodeToString(ciphertext),
			CipherParams: CipherParams{
				IV: hex.EncodeToString(nonce),
			},
			KDF: "pbkdf2",
			KDFParams: KDFParams{
				DKLen: 32,
				Salt:  hex.EncodeToString(salt),
				C:     kdfIterations,
				PRF:   "hmac-sha256",
			},
			MAC: computeMAC(derived, ciphertext),
		},
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Label:     label,
	}

	content, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal keystore: %w", err)
	}

	path := filepath.Join(dir, strings.ToLower(address.Hex())+".json")
	if err := os.WriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write keystore file: %w", err)
	}

	return path, nil
}

// computeMAC 计算完整性MAC: sha256(derivedKey[16:] || ciphertext)
func computeMAC(derived, ciphertext []byte) string {
	h := sha256.New()
	h.Write(derived[16:])
	h.Write(ciphertext)
	return hex.EncodeToString(h.Sum(nil))
}

// LoadKeystore 读取并解析keystore文件
func LoadKeystore(path string) (*KeystoreV1, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keystore file: %w", err)
	}

	var ks KeystoreV1
	if err := json.Unmarshal(content, &ks); err != nil {
		return nil, fmt.Errorf("parse keystore file: %w", err)
	}
	if ks.Version != keystoreVersion {
		return nil, fmt.Errorf("unsupported keystore version: %s", ks.Version)
	}
	if !common.IsHexAddress(ks.Address) {
		return nil, fmt.Errorf("invalid keystore address: %s", ks.Address)
	}

	return &ks, nil
}

// decrypt 使用密码解密私钥
func (ks *KeystoreV1) decrypt(password string) (*ecdsa.PrivateKey, error) {
	if ks.Crypto.Cipher != "aes-256-gcm" || ks.Crypto.KDF != "pbkdf2" {
		return nil, fmt.Errorf("unsupported keystore crypto: %s/%s", ks.Crypto.Cipher, ks.Crypto.KDF)
	}

	salt, err := hex.DecodeString(ks.Crypto.KDFParams.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}
	nonce, err := hex.DecodeString(ks.Crypto.CipherParams.IV)
	if err != nil {
		return nil, fmt.Errorf("decode nonce: %w", err)
	}
	ciphertext, err := hex.DecodeString(ks.Crypto.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}

	derived := pbkdf2.Key([]byte(password), salt, ks.Crypto.KDFParams.C, ks.Crypto.KDFParams.DKLen, sha256.New)

	// 先校验MAC，密码错误时直接报错而不进入GCM解密
	if subtle.ConstantTimeCompare([]byte(computeMAC(derived, ciphertext)), []byte(ks.Crypto.MAC)) != 1 {
		return nil, fmt.Errorf("invalid password or corrupted keystore")
	}

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt keystore: %w", err)
	}

	privateKey, err := crypto.ToECDSA(plaintext)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return privateKey, nil
}

// KeystoreSigner Keystore签名器实现
type KeystoreSigner struct {
	keystorePath string
	address      common.Address

	mu          sync.RWMutex
	privateKey  *ecdsa.PrivateKey // 解锁后的私钥(内存中)
	unlockUntil time.Time
}

// NewKeystoreSigner 创建Keystore签名器
func NewKeystoreSigner(keystorePath string) (*KeystoreSigner, error) {
	ks, err := LoadKeystore(keystorePath)
	if err != nil {
		return nil, err
	}

	return &KeystoreSigner{
		keystorePath: keystorePath,
		address:      common.HexToAddress(ks.Address),
	}, nil
}

// Address 实现 Signer 接口
func (s *KeystoreSigner) Address() common.Address {
	return s.address
}

// Unlock 实现 Signer 接口
func (s *KeystoreSigner) Unlock(password string, duration time.Duration) error {
	ks, err := LoadKeystore(s.keystorePath)
	if err != nil {
		return err
	}

	privateKey, err := ks.decrypt(password)
	if err != nil {
		return err
	}

	derivedAddr := crypto.PubkeyToAddress(privateKey.PublicKey)
	if derivedAddr != s.address {
		return fmt.Errorf("keystore address mismatch: file=%s derived=%s", s.address.Hex(), derivedAddr.Hex())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.privateKey = privateKey
	if duration == 0 {
		s.unlockUntil = time.Time{} // 永久解锁
	} else {
		s.unlockUntil = time.Now().Add(duration)
	}
	return nil
}

// Lock 实现 Signer 接口
func (s *KeystoreSigner) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privateKey = nil
	s.unlockUntil = time.Time{}
}

// IsLocked 实现 Signer 接口
func (s *KeystoreSigner) IsLocked() bool {
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
func (s *KeystoreSigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
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
func (s *KeystoreSigner) Type() SignerType {
	return SignerTypeKeystore
}

// ListKeystores 列出目录下的所有keystore文件
func ListKeystores(dir string) ([]*KeystoreV1, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keystore dir: %w", err)
	}

	var keystores []*KeystoreV1
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		ks, err := LoadKeystore(filepath.Join(dir, entry.Name()))
		if err != nil {
			// 跳过无法解析的文件
			continue
		}
		keystores = append(keystores, ks)
	}
	return keystores, nil
}
