package chain

import (
	"context"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContractAddr = "0x1111111111111111111111111111111111111111"

var testOwner = common.HexToAddress("0x2222222222222222222222222222222222222222")

// fakeBackend 内存后端实现
type fakeBackend struct {
	chainID     *big.Int
	callFn      func(call ethereum.CallMsg) ([]byte, error)
	sentTx      *types.Transaction
	sendErr     error
	receipts    map[common.Hash]*types.Receipt
	receiptMiss int // 前N次查询返回未找到

	callCtx    context.Context // 最近一次只读调用收到的context
	receiptCtx context.Context // 最近一次回执查询收到的context
}

func (b *fakeBackend) ChainID(_ context.Context) (*big.Int, error) {
	if b.chainID == nil {
		return big.NewInt(1), nil
	}
	return b.chainID, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	b.callCtx = ctx
	if b.callFn == nil {
		return nil, ethereum.NotFound
	}
	return b.callFn(call)
}

func (b *fakeBackend) PendingNonceAt(_ context.Context, _ common.Address) (uint64, error) {
	return 7, nil
}

func (b *fakeBackend) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(_ context.Context, _ ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sentTx = tx
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.receiptCtx = ctx
	if b.receiptMiss > 0 {
		b.receiptMiss--
		return nil, ethereum.NotFound
	}
	receipt, ok := b.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// passthroughSigner 测试签名器（原样返回交易）
type passthroughSigner struct {
	signed *types.Transaction
}

func (s *passthroughSigner) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	s.signed = tx
	return tx, nil
}

func newTestService(t *testing.T, backend Backend, mutate func(*Config)) *Service {
	t.Helper()

	cfg := &Config{
		Address:             testContractAddr,
		HasMintedCheck:      true,
		ReceiptPollInterval: 5 * time.Millisecond,
	}
	if mutate != nil {
		mutate(cfg)
	}

	svc, err := NewService(backend, cfg, nil)
	require.NoError(t, err)
	return svc
}

func packOutputs(t *testing.T, method string, values ...interface{}) []byte {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(Retro721ABI))
	require.NoError(t, err)
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestNewService(t *testing.T) {
	t.Run("非法合约地址被拒绝", func(t *testing.T) {
		_, err := NewService(&fakeBackend{}, &Config{Address: "not-an-address"}, nil)
		assert.Error(t, err)
	})

	t.Run("空配置被拒绝", func(t *testing.T) {
		_, err := NewService(&fakeBackend{}, nil, nil)
		assert.Error(t, err)
	})
}

func TestVerifyChainID(t *testing.T) {
	t.Run("链ID一致时通过", func(t *testing.T) {
		svc := newTestService(t, &fakeBackend{chainID: big.NewInt(8453)}, func(c *Config) { c.ChainID = 8453 })
		assert.NoError(t, svc.VerifyChainID(context.Background()))
	})

	t.Run("链ID不一致时报错", func(t *testing.T) {
		svc := newTestService(t, &fakeBackend{chainID: big.NewInt(1)}, func(c *Config) { c.ChainID = 8453 })
		assert.ErrorContains(t, svc.VerifyChainID(context.Background()), "chain id mismatch")
	})

	t.Run("未配置链ID时跳过校验", func(t *testing.T) {
		svc := newTestService(t, &fakeBackend{chainID: big.NewInt(999)}, nil)
		assert.NoError(t, svc.VerifyChainID(context.Background()))
	})
}

func TestMintFee(t *testing.T) {
	fee := big.NewInt(1_500_000_000_000_000) // 0.0015 ETH

	backend := &fakeBackend{
		callFn: func(call ethereum.CallMsg) ([]byte, error) {
			return packOutputs(t, "mintFee", fee), nil
		},
	}
	svc := newTestService(t, backend, nil)

	got, err := svc.MintFee(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, fee.Cmp(got))
}

func TestHasMinted(t *testing.T) {
	t.Run("合约支持时透传查询结果", func(t *testing.T) {
		backend := &fakeBackend{
			callFn: func(call ethereum.CallMsg) ([]byte, error) {
				return packOutputs(t, "hasMinted", true), nil
			},
		}
		svc := newTestService(t, backend, nil)

		minted, err := svc.HasMinted(context.Background(), testOwner)
		require.NoError(t, err)
		assert.True(t, minted)
	})

	t.Run("合约不支持时恒为false且不发起调用", func(t *testing.T) {
		called := false
		backend := &fakeBackend{
			callFn: func(call ethereum.CallMsg) ([]byte, error) {
				called = true
				return nil, nil
			},
		}
		svc := newTestService(t, backend, func(c *Config) { c.HasMintedCheck = false })

		minted, err := svc.HasMinted(context.Background(), testOwner)
		require.NoError(t, err)
		assert.False(t, minted)
		assert.False(t, called)
	})
}

func TestMint(t *testing.T) {
	t.Run("构建并广播payable铸造交易", func(t *testing.T) {
		backend := &fakeBackend{chainID: big.NewInt(8453)}
		svc := newTestService(t, backend, nil)
		signer := &passthroughSigner{}
		fee := big.NewInt(1000)

		txHash, err := svc.Mint(context.Background(), testOwner, signer, "ipfs://QmMeta", fee)
		require.NoError(t, err)
		require.NotNil(t, backend.sentTx)

		assert.Equal(t, backend.sentTx.Hash(), txHash)
		assert.Equal(t, 0, fee.Cmp(backend.sentTx.Value()))
		assert.Equal(t, uint64(7), backend.sentTx.Nonce())
		assert.Equal(t, svc.Address(), *backend.sentTx.To())
		// 估算100000外加20%余量
		assert.Equal(t, uint64(120_000), backend.sentTx.Gas())
	})

	t.Run("广播失败向上传播", func(t *testing.T) {
		backend := &fakeBackend{sendErr: ethereum.NotFound}
		svc := newTestService(t, backend, nil)

		_, err := svc.Mint(context.Background(), testOwner, &passthroughSigner{}, "ipfs://QmMeta", big.NewInt(1))
		assert.ErrorContains(t, err, "send mint transaction")
	})
}

func TestRequestTimeout(t *testing.T) {
	t.Run("只读调用套上配置的超时", func(t *testing.T) {
		backend := &fakeBackend{
			callFn: func(call ethereum.CallMsg) ([]byte, error) {
				return packOutputs(t, "mintFee", big.NewInt(1000)), nil
			},
		}
		svc := newTestService(t, backend, func(c *Config) { c.RequestTimeout = time.Minute })

		_, err := svc.MintFee(context.Background())
		require.NoError(t, err)
		require.NotNil(t, backend.callCtx)
		_, hasDeadline := backend.callCtx.Deadline()
		assert.True(t, hasDeadline)
	})

	t.Run("未配置时只读调用不限时", func(t *testing.T) {
		backend := &fakeBackend{
			callFn: func(call ethereum.CallMsg) ([]byte, error) {
				return packOutputs(t, "mintFee", big.NewInt(1000)), nil
			},
		}
		svc := newTestService(t, backend, nil)

		_, err := svc.MintFee(context.Background())
		require.NoError(t, err)
		_, hasDeadline := backend.callCtx.Deadline()
		assert.False(t, hasDeadline)
	})

	t.Run("回执等待不受只读超时限制", func(t *testing.T) {
		txHash := common.HexToHash("0xabc2")
		backend := &fakeBackend{
			receipts: map[common.Hash]*types.Receipt{
				txHash: {Status: types.ReceiptStatusSuccessful, TxHash: txHash},
			},
		}
		svc := newTestService(t, backend, func(c *Config) { c.RequestTimeout = time.Minute })

		// 确认等待只由调用方取消，服务不得附加deadline
		_, err := svc.WaitReceipt(context.Background(), txHash)
		require.NoError(t, err)
		_, hasDeadline := backend.receiptCtx.Deadline()
		assert.False(t, hasDeadline)
	})
}

func TestWaitReceipt(t *testing.T) {
	t.Run("轮询直到回执出现", func(t *testing.T) {
		txHash := common.HexToHash("0xabc1")
		backend := &fakeBackend{
			receiptMiss: 3,
			receipts: map[common.Hash]*types.Receipt{
				txHash: {Status: types.ReceiptStatusSuccessful, TxHash: txHash},
			},
		}
		svc := newTestService(t, backend, nil)

		receipt, err := svc.WaitReceipt(context.Background(), txHash)
		require.NoError(t, err)
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	})

	t.Run("context取消终止等待", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
		defer cancel()

		svc := newTestService(t, &fakeBackend{}, nil)

		_, err := svc.WaitReceipt(ctx, common.HexToHash("0xdead"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
