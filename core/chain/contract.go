package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/retromint/v1/pkg/ux/ui"
)

// Config 合约交互配置
//
// 合约地址与ABI通过配置注入而非编译期常量，测试可替换后端与ABI
type Config struct {
	// Address 合约地址(0x前缀hex)
	Address string `json:"address"`

	// ChainID 期望的链ID，非零时在交互前校验节点链ID
	ChainID uint64 `json:"chain_id"`

	// HasMintedCheck 合约是否提供每地址历史铸造查询
	HasMintedCheck bool `json:"has_minted_check"`

	// ABIJSON 覆盖默认ABI(留空使用 Retro721ABI)
	ABIJSON string `json:"-"`

	// ReceiptPollInterval 回执轮询间隔，0使用默认2秒
	ReceiptPollInterval time.Duration `json:"-"`

	// RequestTimeout 只读RPC调用（费用/已铸造查询/链ID）的单次超时，
	// 0表示不限制。交易提交后的回执等待不受此限制：签名和确认等待
	// 没有超时上限，只由调用方取消
	RequestTimeout time.Duration `json:"-"`

	// GasLimit 固定gas上限，0时使用估算值
	GasLimit uint64 `json:"gas_limit,omitempty"`
}

// Service 铸造合约服务
type Service struct {
	backend Backend
	abi     abi.ABI
	address common.Address
	cfg     *Config
	logger  ui.Logger
}

// NewService 创建合约服务
func NewService(backend Backend, cfg *Config, logger ui.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("contract config is nil")
	}
	if !common.IsHexAddress(cfg.Address) {
		return nil, fmt.Errorf("invalid contract address: %s", cfg.Address)
	}

	abiJSON := cfg.ABIJSON
	if abiJSON == "" {
		abiJSON = Retro721ABI
	}
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}

	return &Service{
		backend: backend,
		abi:     parsed,
		address: common.HexToAddress(cfg.Address),
		cfg:     cfg,
		logger:  ui.OrNoop(logger),
	}, nil
}

// Address 返回合约地址
func (s *Service) Address() common.Address {
	return s.address
}

// readCtx 为只读RPC调用套上配置的超时
func (s *Service) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.cfg.RequestTimeout)
}

// SupportsMintCheck 合约是否提供每地址历史铸造查询
func (s *Service) SupportsMintCheck() bool {
	return s.cfg.HasMintedCheck
}

// VerifyChainID 校验节点链ID与配置一致
//
// 客户端无法切换远端节点所在的链，只能校验并给出提示
func (s *Service) VerifyChainID(ctx context.Context) error {
	if s.cfg.ChainID == 0 {
		return nil
	}

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if chainID.Uint64() != s.cfg.ChainID {
		return fmt.Errorf("chain id mismatch: node=%d expected=%d", chainID.Uint64(), s.cfg.ChainID)
	}
	return nil
}

// MintFee 读取合约声明的铸造费用(wei)
//
// 每次铸造尝试前重新读取，避免过期费用导致链上拒绝
func (s *Service) MintFee(ctx context.Context) (*big.Int, error) {
	data, err := s.abi.Pack("mintFee")
	if err != nil {
		return nil, fmt.Errorf("pack mintFee call: %w", err)
	}

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	result, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &s.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call mintFee: %w", err)
	}

	out, err := s.abi.Unpack("mintFee", result)
	if err != nil {
		return nil, fmt.Errorf("unpack mintFee result: %w", err)
	}
	fee, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected mintFee result type: %T", out[0])
	}
	return fee, nil
}

// HasMinted 查询地址是否已铸造
//
// 配置声明合约不支持此查询时恒返回false（单地址唯一性由合约兜底）
func (s *Service) HasMinted(ctx context.Context, owner common.Address) (bool, error) {
	if !s.cfg.HasMintedCheck {
		return false, nil
	}

	data, err := s.abi.Pack("hasMinted", owner)
	if err != nil {
		return false, fmt.Errorf("pack hasMinted call: %w", err)
	}

	ctx, cancel := s.readCtx(ctx)
	defer cancel()

	result, err := s.backend.CallContract(ctx, ethereum.CallMsg{To: &s.address, Data: data}, nil)
	if err != nil {
		return false, fmt.Errorf("call hasMinted: %w", err)
	}

	out, err := s.abi.Unpack("hasMinted", result)
	if err != nil {
		return false, fmt.Errorf("unpack hasMinted result: %w", err)
	}
	minted, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("unexpected hasMinted result type: %T", out[0])
	}
	return minted, nil
}

// Mint 发起payable铸造调用
//
// 流程：构建calldata → 取nonce/gas价格 → 估算gas → 签名 → 广播
// 返回已提交的交易哈希；签名由注入的TxSigner完成
func (s *Service) Mint(ctx context.Context, from common.Address, signer TxSigner, tokenURI string, fee *big.Int) (common.Hash, error) {
	data, err := s.abi.Pack("mint", tokenURI)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack mint call: %w", err)
	}

	chainID, err := s.backend.ChainID(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read chain id: %w", err)
	}

	nonce, err := s.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("read nonce: %w", err)
	}

	gasPrice, err := s.backend.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
	}

	gasLimit := s.cfg.GasLimit
	if gasLimit == 0 {
		estimated, err := s.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    &s.address,
			Value: fee,
			Data:  data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
		// 估算值外加20%余量
		gasLimit = estimated + estimated/5
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &s.address,
		Value:    fee,
		Data:     data,
	})

	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign mint transaction: %w", err)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send mint transaction: %w", err)
	}

	s.logger.Infof("铸造交易已提交: hash=%s nonce=%d fee=%s", signed.Hash().Hex(), nonce, fee.String())
	return signed.Hash(), nil
}

// WaitReceipt 轮询等待交易回执
//
// 无超时上限（由调用方通过ctx取消）；节点未上链期间持续轮询
func (s *Service) WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	interval := s.cfg.ReceiptPollInterval
	if interval == 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := s.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			s.logger.Warnf("查询回执失败(将重试): %v", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
