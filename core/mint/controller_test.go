package mint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/big"
	"strings"
	"testing"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retromint/v1/core/chain"
	"github.com/retromint/v1/core/style"
)

var testOwner = common.HexToAddress("0x1111111111111111111111111111111111111111")

// ===== 测试替身 =====

type fakeStyler struct {
	calls int
	err   error
}

func (f *fakeStyler) Generate(_ context.Context, source []byte) (*style.StyledImage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &style.StyledImage{PNG: append([]byte("styled:"), source...), Width: 768, Height: 768}, nil
}

type fakeUploader struct {
	blobCalls int
	jsonCalls int
	blobErr   error
	jsonErr   error
}

func (f *fakeUploader) UploadBlob(_ context.Context, name, contentType string, data []byte) (string, error) {
	f.blobCalls++
	if f.blobErr != nil {
		return "", f.blobErr
	}
	return "QmImageCid", nil
}

func (f *fakeUploader) UploadJSON(_ context.Context, name string, v interface{}) (string, error) {
	f.jsonCalls++
	if f.jsonErr != nil {
		return "", f.jsonErr
	}
	return "QmMetaCid", nil
}

type fakeChain struct {
	feeCalls       int
	hasMintedCalls int
	mintCalls      int
	receiptCalls   int

	supportsCheck bool
	hasMinted     bool
	hasMintedErr  error
	feeErr        error
	mintErr       error
	receiptErr    error
	outcomeErr    error
	tokenID       *big.Int
}

func (f *fakeChain) MintFee(_ context.Context) (*big.Int, error) {
	f.feeCalls++
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return big.NewInt(1000), nil
}

func (f *fakeChain) HasMinted(_ context.Context, _ common.Address) (bool, error) {
	f.hasMintedCalls++
	return f.hasMinted, f.hasMintedErr
}

func (f *fakeChain) SupportsMintCheck() bool {
	return f.supportsCheck
}

func (f *fakeChain) Mint(_ context.Context, _ common.Address, _ chain.TxSigner, _ string, _ *big.Int) (common.Hash, error) {
	f.mintCalls++
	if f.mintErr != nil {
		return common.Hash{}, f.mintErr
	}
	return common.HexToHash("0xabcd"), nil
}

func (f *fakeChain) WaitReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.receiptCalls++
	if f.receiptErr != nil {
		return nil, f.receiptErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: txHash}, nil
}

func (f *fakeChain) ExtractMintOutcome(receipt *types.Receipt, owner common.Address) (*chain.MintOutcome, error) {
	if f.outcomeErr != nil {
		return nil, f.outcomeErr
	}
	tokenID := f.tokenID
	if tokenID == nil {
		tokenID = big.NewInt(42)
	}
	return &chain.MintOutcome{TokenID: tokenID, TxHash: receipt.TxHash}, nil
}

type fakeWallet struct {
	locked bool
}

func (f *fakeWallet) Address() common.Address { return testOwner }
func (f *fakeWallet) IsLocked() bool          { return f.locked }
func (f *fakeWallet) SignTx(tx *types.Transaction, _ *big.Int) (*types.Transaction, error) {
	return tx, nil
}

// ===== 辅助函数 =====

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	controller *Controller
	styler     *fakeStyler
	uploader   *fakeUploader
	chain      *fakeChain
	wallet     *fakeWallet
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		styler:   &fakeStyler{},
		uploader: &fakeUploader{},
		chain:    &fakeChain{},
		wallet:   &fakeWallet{},
	}
	controller, err := NewController(f.styler, f.uploader, f.chain, nil, nil)
	require.NoError(t, err)
	f.controller = controller
	return f
}

// prepared 推进到 StylePrepared 且钱包已连接
func (f *fixture) prepared(t *testing.T) {
	t.Helper()
	require.True(t, f.controller.SelectImage(pngBytes(t)))
	require.NoError(t, f.controller.PrepareStyle(context.Background()))
	f.controller.ConnectWallet(f.wallet)
	require.Equal(t, StateStylePrepared, f.controller.State())
}

// ===== 测试 =====

func TestController_SelectImage(t *testing.T) {
	t.Run("接受图片输入", func(t *testing.T) {
		f := newFixture(t)
		assert.True(t, f.controller.SelectImage(pngBytes(t)))
		assert.Equal(t, StateImageSelected, f.controller.State())
	})

	t.Run("非图片输入静默忽略", func(t *testing.T) {
		f := newFixture(t)
		assert.False(t, f.controller.SelectImage([]byte("%PDF-1.4 not an image")))
		assert.False(t, f.controller.SelectImage(nil))
		assert.Equal(t, StateIdle, f.controller.State())
	})

	t.Run("新选择清除风格图和铸造结果", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		result, err := f.controller.Mint(context.Background())
		require.NoError(t, err)
		require.NotNil(t, result)
		require.Equal(t, StateRevealed, f.controller.State())

		assert.True(t, f.controller.SelectImage(pngBytes(t)))
		assert.Equal(t, StateImageSelected, f.controller.State())
		assert.Nil(t, f.controller.Result())
		_, err = f.controller.RevealedImage()
		assert.Error(t, err)
	})
}

func TestController_PrepareStyle(t *testing.T) {
	t.Run("成功进入StylePrepared", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.controller.SelectImage(pngBytes(t)))
		require.NoError(t, f.controller.PrepareStyle(context.Background()))
		assert.Equal(t, StateStylePrepared, f.controller.State())

		// 确认前图片保持隐藏
		_, err := f.controller.RevealedImage()
		assert.Error(t, err)
	})

	t.Run("未选择图片时报错", func(t *testing.T) {
		f := newFixture(t)
		assert.Error(t, f.controller.PrepareStyle(context.Background()))
	})

	t.Run("已揭示后拒绝重新生成", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		_, err := f.controller.Mint(context.Background())
		require.NoError(t, err)
		revealed, err := f.controller.RevealedImage()
		require.NoError(t, err)

		// 重新生成会让已铸造的token指向一张从未上链的图
		err = f.controller.PrepareStyle(context.Background())
		assert.Error(t, err)
		assert.Equal(t, StateRevealed, f.controller.State())
		assert.Equal(t, 1, f.styler.calls)

		again, err := f.controller.RevealedImage()
		require.NoError(t, err)
		assert.Same(t, revealed, again)
	})

	t.Run("生成失败回到ImageSelected", func(t *testing.T) {
		f := newFixture(t)
		require.True(t, f.controller.SelectImage(pngBytes(t)))
		require.NoError(t, f.controller.PrepareStyle(context.Background()))

		f.styler.err = errors.New("decode failed")
		err := f.controller.PrepareStyle(context.Background())
		assert.Error(t, err)
		assert.Equal(t, StateImageSelected, f.controller.State())
	})
}

func TestController_Preconditions(t *testing.T) {
	t.Run("钱包未连接时不发起网络调用", func(t *testing.T) {
		f := newFixture(t)
		f.chain.supportsCheck = true
		require.True(t, f.controller.SelectImage(pngBytes(t)))
		require.NoError(t, f.controller.PrepareStyle(context.Background()))

		_, err := f.controller.Mint(context.Background())
		var pre *PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Contains(t, strings.Join(pre.Reasons, ";"), "connect a wallet")

		// 状态不变，无任何上传或链上调用
		assert.Equal(t, StateStylePrepared, f.controller.State())
		assert.Zero(t, f.chain.hasMintedCalls)
		assert.Zero(t, f.uploader.blobCalls)
		assert.Zero(t, f.chain.mintCalls)
	})

	t.Run("钱包未解锁", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.wallet.locked = true

		_, err := f.controller.Mint(context.Background())
		var pre *PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Contains(t, strings.Join(pre.Reasons, ";"), "unlock")
		assert.Equal(t, StateStylePrepared, f.controller.State())
	})

	t.Run("已铸造过的钱包被拒绝", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.supportsCheck = true
		f.chain.hasMinted = true

		_, err := f.controller.Mint(context.Background())
		var pre *PreconditionError
		require.ErrorAs(t, err, &pre)
		assert.Contains(t, strings.Join(pre.Reasons, ";"), "already minted")
		assert.Zero(t, f.uploader.blobCalls)
	})

	t.Run("合约无已铸造检查时跳过查询", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.supportsCheck = false

		ok, reasons := f.controller.CanMint(context.Background())
		assert.True(t, ok)
		assert.Empty(t, reasons)
		assert.Zero(t, f.chain.hasMintedCalls)
	})
}

func TestController_Mint(t *testing.T) {
	t.Run("完整流程到Revealed", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)

		result, err := f.controller.Mint(context.Background())
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.Equal(t, StateRevealed, f.controller.State())
		assert.Equal(t, big.NewInt(42), result.TokenID)
		assert.Equal(t, "QmImageCid", result.ImageCID)
		assert.Equal(t, "QmMetaCid", result.MetadataCID)
		assert.Equal(t, "ipfs://QmMetaCid", result.TokenURI)
		assert.Equal(t, testOwner, result.Owner)

		img, err := f.controller.RevealedImage()
		require.NoError(t, err)
		assert.NotNil(t, img)

		name, err := f.controller.DownloadName()
		require.NoError(t, err)
		assert.Equal(t, "retromint-42.png", name)

		share, err := f.controller.ShareURL()
		require.NoError(t, err)
		assert.Contains(t, share, "twitter.com/intent/tweet")
		assert.Contains(t, share, "42")
	})

	t.Run("图片上传失败不触发钱包写入", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.uploader.blobErr = errors.New("service unavailable")

		_, err := f.controller.Mint(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateErrored, f.controller.State())
		assert.Zero(t, f.chain.mintCalls)
		assert.Zero(t, f.uploader.jsonCalls)
	})

	t.Run("元数据上传失败进入Errored且图片保持隐藏", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.uploader.jsonErr = errors.New("service unavailable")

		_, err := f.controller.Mint(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateErrored, f.controller.State())
		assert.Zero(t, f.chain.mintCalls)
		_, err = f.controller.RevealedImage()
		assert.Error(t, err)
	})

	t.Run("签名或广播失败进入Errored", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.mintErr = errors.New("user rejected")

		_, err := f.controller.Mint(context.Background())
		require.Error(t, err)
		assert.Equal(t, StateErrored, f.controller.State())
		assert.Nil(t, f.controller.Result())
	})

	t.Run("回执失败进入Errored且token为空", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.outcomeErr = chain.ErrTxFailed

		_, err := f.controller.Mint(context.Background())
		require.ErrorIs(t, err, chain.ErrTxFailed)
		assert.Equal(t, StateErrored, f.controller.State())
		assert.Nil(t, f.controller.Result())
		_, err = f.controller.RevealedImage()
		assert.Error(t, err)
	})

	t.Run("无可解码铸造事件视为错误", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.outcomeErr = chain.ErrNoMintEvent

		_, err := f.controller.Mint(context.Background())
		require.ErrorIs(t, err, chain.ErrNoMintEvent)
		assert.Equal(t, StateErrored, f.controller.State())
	})

	t.Run("失败后重试重做两次上传并重读费用", func(t *testing.T) {
		f := newFixture(t)
		f.prepared(t)
		f.chain.mintErr = errors.New("user rejected")

		_, err := f.controller.Mint(context.Background())
		require.Error(t, err)
		require.Equal(t, StateErrored, f.controller.State())

		f.chain.mintErr = nil
		result, err := f.controller.Mint(context.Background())
		require.NoError(t, err)
		assert.Equal(t, StateRevealed, f.controller.State())
		assert.NotNil(t, result)

		// 每次尝试都重新上传并重读费用
		assert.Equal(t, 2, f.uploader.blobCalls)
		assert.Equal(t, 2, f.uploader.jsonCalls)
		assert.Equal(t, 2, f.chain.feeCalls)
	})

	t.Run("非就绪状态下拒绝触发", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.controller.Mint(context.Background())
		assert.Error(t, err)
		assert.Equal(t, StateIdle, f.controller.State())
	})
}

func TestController_StateEvents(t *testing.T) {
	f := newFixture(t)

	bus := evbus.New()
	controller, err := NewController(f.styler, f.uploader, f.chain, &Config{Bus: bus}, nil)
	require.NoError(t, err)

	// 订阅方在处理器里回读控制器状态：事件发布不得持有内部锁，
	// 否则这里会死锁
	var changes []StateChange
	var observed []State
	selectDuringUpload := true
	require.NoError(t, bus.Subscribe(TopicStateChanged, func(change StateChange) {
		changes = append(changes, change)
		observed = append(observed, controller.State())
		if change.To == StateUploading {
			// 流程进行中的新选择必须被拒绝
			selectDuringUpload = controller.SelectImage(pngBytes(t))
		}
	}))

	require.True(t, controller.SelectImage(pngBytes(t)))
	require.NoError(t, controller.PrepareStyle(context.Background()))
	controller.ConnectWallet(f.wallet)
	_, err = controller.Mint(context.Background())
	require.NoError(t, err)

	bus.WaitAsync()

	var sequence []string
	for _, change := range changes {
		sequence = append(sequence, fmt.Sprintf("%s->%s", change.From, change.To))
	}
	assert.Equal(t, []string{
		"idle->image_selected",
		"image_selected->style_prepared",
		"style_prepared->uploading",
		"uploading->awaiting_signature",
		"awaiting_signature->awaiting_confirmation",
		"awaiting_confirmation->revealed",
	}, sequence)

	// 处理器观察到的状态与事件一致（发布时转换已经完成）
	for i, change := range changes {
		assert.Equal(t, change.To, observed[i])
	}
	assert.False(t, selectDuringUpload)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "revealed", StateRevealed.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateUploading.InProgress())
	assert.False(t, StateRevealed.InProgress())
	assert.True(t, StateRevealed.IsTerminal())
}
