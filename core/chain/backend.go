package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend 链上后端接口 - 铸造服务与节点通信的唯一通道
//
// *ethclient.Client 直接满足此接口；测试中以内存实现替代
type Backend interface {
	// ChainID 获取链ID
	ChainID(ctx context.Context) (*big.Int, error)

	// CallContract 执行只读合约调用
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)

	// PendingNonceAt 获取账户的pending nonce
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)

	// SuggestGasPrice 获取建议gas价格
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	// EstimateGas 估算交易gas用量
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)

	// SendTransaction 广播已签名交易
	SendTransaction(ctx context.Context, tx *types.Transaction) error

	// TransactionReceipt 查询交易回执（未上链时返回 ethereum.NotFound）
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner 交易签名接口
//
// 钱包层实现；本包从不接触私钥
type TxSigner interface {
	// SignTx 对交易签名
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}
