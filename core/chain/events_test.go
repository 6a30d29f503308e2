package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var otherAccount = common.HexToAddress("0x3333333333333333333333333333333333333333")

func addressTopic(addr common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
}

// mintedLog 构造Minted事件日志
func mintedLog(t *testing.T, contract common.Address, owner common.Address, tokenID *big.Int, uri string) *types.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(Retro721ABI))
	require.NoError(t, err)

	data, err := parsed.Events["Minted"].Inputs.NonIndexed().Pack(uri)
	require.NoError(t, err)

	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			parsed.Events["Minted"].ID,
			addressTopic(owner),
			common.BigToHash(tokenID),
		},
		Data: data,
	}
}

// transferLog 构造Transfer事件日志
func transferLog(t *testing.T, contract common.Address, from, to common.Address, tokenID *big.Int) *types.Log {
	t.Helper()

	parsed, err := abi.JSON(strings.NewReader(Retro721ABI))
	require.NoError(t, err)

	return &types.Log{
		Address: contract,
		Topics: []common.Hash{
			parsed.Events["Transfer"].ID,
			addressTopic(from),
			addressTopic(to),
			common.BigToHash(tokenID),
		},
	}
}

func successReceipt(txHash common.Hash, logs ...*types.Log) *types.Receipt {
	return &types.Receipt{
		Status: types.ReceiptStatusSuccessful,
		TxHash: txHash,
		Logs:   logs,
	}
}

func TestExtractMintOutcome(t *testing.T) {
	txHash := common.HexToHash("0xfeed")
	contract := common.HexToAddress(testContractAddr)
	svc := newTestService(t, &fakeBackend{}, nil)

	t.Run("优先使用发给调用账户的Minted事件", func(t *testing.T) {
		receipt := successReceipt(txHash,
			transferLog(t, contract, common.Address{}, testOwner, big.NewInt(42)),
			mintedLog(t, contract, testOwner, big.NewInt(42), "ipfs://QmMeta"),
		)

		outcome, err := svc.ExtractMintOutcome(receipt, testOwner)
		require.NoError(t, err)
		assert.Equal(t, int64(42), outcome.TokenID.Int64())
		assert.Equal(t, "ipfs://QmMeta", outcome.URI)
		assert.Equal(t, txHash, outcome.TxHash)
	})

	t.Run("无Minted事件时回退到零地址Transfer", func(t *testing.T) {
		receipt := successReceipt(txHash,
			transferLog(t, contract, common.Address{}, testOwner, big.NewInt(9)),
		)

		outcome, err := svc.ExtractMintOutcome(receipt, testOwner)
		require.NoError(t, err)
		assert.Equal(t, int64(9), outcome.TokenID.Int64())
		assert.Empty(t, outcome.URI)
	})

	t.Run("发给其他账户的事件不计入", func(t *testing.T) {
		receipt := successReceipt(txHash,
			mintedLog(t, contract, otherAccount, big.NewInt(1), "ipfs://QmOther"),
			transferLog(t, contract, common.Address{}, otherAccount, big.NewInt(1)),
		)

		_, err := svc.ExtractMintOutcome(receipt, testOwner)
		assert.ErrorIs(t, err, ErrNoMintEvent)
	})

	t.Run("非铸造的Transfer不作为回退来源", func(t *testing.T) {
		// from非零地址：普通转移而非铸造
		receipt := successReceipt(txHash,
			transferLog(t, contract, otherAccount, testOwner, big.NewInt(5)),
		)

		_, err := svc.ExtractMintOutcome(receipt, testOwner)
		assert.ErrorIs(t, err, ErrNoMintEvent)
	})

	t.Run("其他合约地址的日志不计入", func(t *testing.T) {
		receipt := successReceipt(txHash,
			mintedLog(t, otherAccount, testOwner, big.NewInt(3), "ipfs://QmMeta"),
		)

		_, err := svc.ExtractMintOutcome(receipt, testOwner)
		assert.ErrorIs(t, err, ErrNoMintEvent)
	})

	t.Run("回执失败状态返回ErrTxFailed", func(t *testing.T) {
		receipt := &types.Receipt{Status: types.ReceiptStatusFailed, TxHash: txHash}

		_, err := svc.ExtractMintOutcome(receipt, testOwner)
		assert.ErrorIs(t, err, ErrTxFailed)
	})

	t.Run("成功回执但无事件为歧义确认", func(t *testing.T) {
		_, err := svc.ExtractMintOutcome(successReceipt(txHash), testOwner)
		assert.ErrorIs(t, err, ErrNoMintEvent)
	})

	t.Run("形状不符的日志失败关闭不抛错", func(t *testing.T) {
		parsed, err := abi.JSON(strings.NewReader(Retro721ABI))
		require.NoError(t, err)

		// Minted的topic数量不足
		malformed := &types.Log{
			Address: contract,
			Topics:  []common.Hash{parsed.Events["Minted"].ID, addressTopic(testOwner)},
		}

		_, err = svc.ExtractMintOutcome(successReceipt(txHash, malformed), testOwner)
		assert.ErrorIs(t, err, ErrNoMintEvent)
	})
}
