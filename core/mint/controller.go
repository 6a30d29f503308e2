package mint

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/retromint/v1/core/chain"
	"github.com/retromint/v1/core/storage"
	"github.com/retromint/v1/core/style"
	"github.com/retromint/v1/pkg/ux/ui"
)

// TopicStateChanged 状态变更事件主题
const TopicStateChanged = "mint:state_changed"

// StateChange 状态变更事件载荷
type StateChange struct {
	From State
	To   State
}

// Styler 风格化引擎协作方
type Styler interface {
	Generate(ctx context.Context, source []byte) (*style.StyledImage, error)
}

// ChainService 合约协作方
type ChainService interface {
	MintFee(ctx context.Context) (*big.Int, error)
	HasMinted(ctx context.Context, owner common.Address) (bool, error)
	SupportsMintCheck() bool
	Mint(ctx context.Context, from common.Address, signer chain.TxSigner, tokenURI string, fee *big.Int) (common.Hash, error)
	WaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ExtractMintOutcome(receipt *types.Receipt, owner common.Address) (*chain.MintOutcome, error)
}

// WalletSession 钱包会话协作方
//
// nil 会话表示钱包未连接
type WalletSession interface {
	Address() common.Address
	IsLocked() bool
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Result 铸造结果
//
// 仅在链上确认且事件解码成功后设置，一旦设置即不可变
type Result struct {
	TokenID     *big.Int       `json:"token_id"`
	TxHash      common.Hash    `json:"tx_hash"`
	TokenURI    string         `json:"token_uri"`
	ImageCID    string         `json:"image_cid"`
	MetadataCID string         `json:"metadata_cid"`
	Owner       common.Address `json:"owner"`
	MintedAt    time.Time      `json:"minted_at"`
}

// PreconditionError 铸造前置条件未满足
//
// 不是流程错误：控制器保持原状态，Reasons 作为提示文本展示给用户
type PreconditionError struct {
	Reasons []string
}

func (e *PreconditionError) Error() string {
	return "mint preconditions not met: " + strings.Join(e.Reasons, "; ")
}

// Config 控制器配置
type Config struct {
	// Name 元数据名称（为空时使用默认值）
	Name string
	// Description 元数据描述
	Description string
	// Bus 状态变更事件总线（可选）
	Bus evbus.Bus
}

// DefaultName 默认代币名称
const DefaultName = "RetroMint PFP"

// DefaultDescription 默认代币描述
const DefaultDescription = "A retro-styled profile picture minted with RetroMint."

// Controller 铸造流程控制器
//
// 以单一状态值+转换表驱动整个流程。互斥锁只保护状态读写，
// 不跨越网络等待持有；流程进行中（InProgress 状态）拒绝新的触发。
// 状态变更事件一律在释放锁之后发布，订阅方可以安全地回读控制器状态
type Controller struct {
	styler   Styler
	uploader storage.Uploader
	chain    ChainService
	bus      evbus.Bus
	logger   ui.Logger

	mu          sync.Mutex
	state       State
	wallet      WalletSession
	source      []byte
	sourceType  string
	styled      *style.StyledImage
	name        string
	description string
	result      *Result
	lastErr     error
}

// NewController 创建铸造流程控制器
func NewController(styler Styler, uploader storage.Uploader, chainSvc ChainService, cfg *Config, logger ui.Logger) (*Controller, error) {
	if styler == nil {
		return nil, fmt.Errorf("styler is required")
	}
	if uploader == nil {
		return nil, fmt.Errorf("uploader is required")
	}
	if chainSvc == nil {
		return nil, fmt.Errorf("chain service is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}

	name := cfg.Name
	if name == "" {
		name = DefaultName
	}
	description := cfg.Description
	if description == "" {
		description = DefaultDescription
	}

	return &Controller{
		styler:      styler,
		uploader:    uploader,
		chain:       chainSvc,
		bus:         cfg.Bus,
		logger:      ui.OrNoop(logger),
		state:       StateIdle,
		name:        name,
		description: description,
	}, nil
}

// setState 执行状态转换（调用者需持有锁）
//
// 只修改状态并返回变更事件，不发布：发布必须在释放锁之后进行
// （见 publishChange），否则同步订阅方回读状态时会死锁
func (c *Controller) setState(to State) (StateChange, bool) {
	from := c.state
	if from == to {
		return StateChange{}, false
	}
	if !canTransition(from, to) {
		// 转换表之外的跳转属于编程错误，记录但不崩溃
		c.logger.Warnf("illegal state transition %s -> %s", from, to)
		return StateChange{}, false
	}
	c.state = to
	c.logger.Debugf("state %s -> %s", from, to)
	return StateChange{From: from, To: to}, true
}

// publishChange 发布状态变更事件（调用者必须已释放锁）
func (c *Controller) publishChange(change StateChange, ok bool) {
	if ok && c.bus != nil {
		c.bus.Publish(TopicStateChanged, change)
	}
}

// advance 获取锁执行转换，随后在锁外发布事件
func (c *Controller) advance(to State) {
	c.mu.Lock()
	change, ok := c.setState(to)
	c.mu.Unlock()
	c.publishChange(change, ok)
}

// State 返回当前状态
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError 返回最近一次流程错误
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ConnectWallet 关联钱包会话
func (c *Controller) ConnectWallet(w WalletSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = w
}

// DisconnectWallet 断开钱包会话
func (c *Controller) DisconnectWallet() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wallet = nil
}

// SetMetadata 设置元数据名称与描述（为空时保留当前值）
func (c *Controller) SetMetadata(name, description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if name != "" {
		c.name = name
	}
	if description != "" {
		c.description = description
	}
}

// SelectImage 选择源图片
//
// 按内容嗅探MIME类型，非图片输入静默忽略（返回false，状态不变）。
// 接受新图片会丢弃已生成的风格图和已有的铸造结果；
// 流程进行中不接受新的选择
func (c *Controller) SelectImage(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return false
	}

	c.mu.Lock()
	if c.state.InProgress() {
		c.mu.Unlock()
		return false
	}

	c.source = data
	c.sourceType = contentType
	c.styled = nil
	c.result = nil
	c.lastErr = nil
	change, ok := c.setState(StateImageSelected)
	c.mu.Unlock()

	c.publishChange(change, ok)
	return true
}

// PrepareStyle 生成风格化图片
//
// 仅在 ImageSelected/StylePrepared/Errored 状态下可用：流程进行中
// 或已揭示后重新生成会让已铸造的token指向一张从未上链的图。
// 失败时不保留部分结果，回到 ImageSelected；成功后进入 StylePrepared，
// 丢弃之前生成的风格图。风格图在铸造确认前对用户保持隐藏
func (c *Controller) PrepareStyle(ctx context.Context) error {
	c.mu.Lock()

	switch c.state {
	case StateImageSelected, StateStylePrepared, StateErrored:
	default:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("style preparation not available in state %s", state)
	}

	if c.source == nil {
		c.mu.Unlock()
		return fmt.Errorf("no image selected")
	}

	c.styled = nil

	styled, err := c.styler.Generate(ctx, c.source)
	if err != nil {
		change, ok := c.setState(StateImageSelected)
		c.mu.Unlock()
		c.publishChange(change, ok)
		return fmt.Errorf("prepare style: %w", err)
	}

	c.styled = styled
	change, ok := c.setState(StateStylePrepared)
	c.mu.Unlock()

	c.publishChange(change, ok)
	return nil
}

// CanMint 检查铸造前置条件
//
// 钱包未连接/未解锁时不发起任何网络调用；仅当钱包与风格图就绪后
// 才查询合约的已铸造标记
func (c *Controller) CanMint(ctx context.Context) (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	reasons := c.checkPreconditions(ctx)
	return len(reasons) == 0, reasons
}

// checkPreconditions 前置条件检查（调用者需持有锁）
func (c *Controller) checkPreconditions(ctx context.Context) []string {
	var reasons []string

	if c.wallet == nil {
		reasons = append(reasons, "connect a wallet first")
	} else if c.wallet.IsLocked() {
		reasons = append(reasons, "unlock the wallet first")
	}
	if c.styled == nil {
		reasons = append(reasons, "prepare a style first")
	}

	// 钱包或风格图缺失时不触碰网络
	if len(reasons) > 0 {
		return reasons
	}

	if c.chain.SupportsMintCheck() {
		minted, err := c.chain.HasMinted(ctx, c.wallet.Address())
		if err != nil {
			reasons = append(reasons, fmt.Sprintf("mint check failed: %v", err))
		} else if minted {
			reasons = append(reasons, "this wallet has already minted")
		}
	}

	return reasons
}

// Mint 执行完整铸造流程
//
// 完整流程：
//  1. 前置条件检查 - 未满足时返回提示，状态不变
//  2. 上传风格图 - 获取图片内容引用
//  3. 上传元数据 - 内嵌图片引用，获取元数据内容引用
//  4. 读取铸造费用 - 每次尝试前重新读取
//  5. 链上铸造 - 签名并广播交易
//  6. 等待回执 - 解码铸造事件，填充结果
//
// 网络等待期间不持有锁，订阅方和读接口保持可用；重入由
// InProgress 状态检查拒绝。任一步骤失败进入 Errored；重新触发
// Mint 即可重试（两次上传都会重做，不复用部分上传结果）
func (c *Controller) Mint(ctx context.Context) (*Result, error) {
	c.mu.Lock()

	if c.state != StateStylePrepared && c.state != StateErrored {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("mint not available in state %s", state)
	}

	if reasons := c.checkPreconditions(ctx); len(reasons) > 0 {
		c.mu.Unlock()
		return nil, &PreconditionError{Reasons: reasons}
	}

	// 锁外流水线使用进入时的快照，期间的断开/重选不影响本次尝试
	wallet := c.wallet
	owner := wallet.Address()
	styled := c.styled
	name := c.name
	description := c.description
	attemptID := uuid.NewString()

	change, ok := c.setState(StateUploading)
	c.mu.Unlock()
	c.publishChange(change, ok)

	c.logger.Infof("mint attempt %s for %s", attemptID, owner.Hex())

	imageCID, err := c.uploader.UploadBlob(ctx, "retromint-"+attemptID+".png", "image/png", styled.PNG)
	if err != nil {
		return nil, c.fail(fmt.Errorf("upload image: %w", err))
	}
	c.logger.Debugf("image uploaded: %s", imageCID)

	metadata := storage.NewTokenMetadata(name, description, imageCID)
	metadataCID, err := c.uploader.UploadJSON(ctx, "retromint-"+attemptID+".json", metadata)
	if err != nil {
		return nil, c.fail(fmt.Errorf("upload metadata: %w", err))
	}
	c.logger.Debugf("metadata uploaded: %s", metadataCID)

	c.advance(StateAwaitingSignature)

	// 每次尝试前重新读取费用，降低过期费用导致的失败率
	fee, err := c.chain.MintFee(ctx)
	if err != nil {
		return nil, c.fail(fmt.Errorf("read mint fee: %w", err))
	}

	tokenURI := storage.ToURI(metadataCID)
	txHash, err := c.chain.Mint(ctx, owner, wallet, tokenURI, fee)
	if err != nil {
		return nil, c.fail(fmt.Errorf("mint transaction: %w", err))
	}
	c.logger.Infof("mint transaction submitted: %s", txHash.Hex())

	c.advance(StateAwaitingConfirmation)

	receipt, err := c.chain.WaitReceipt(ctx, txHash)
	if err != nil {
		return nil, c.fail(fmt.Errorf("wait receipt: %w", err))
	}

	outcome, err := c.chain.ExtractMintOutcome(receipt, owner)
	if err != nil {
		return nil, c.fail(fmt.Errorf("confirm mint: %w", err))
	}

	result := &Result{
		TokenID:     outcome.TokenID,
		TxHash:      txHash,
		TokenURI:    tokenURI,
		ImageCID:    imageCID,
		MetadataCID: metadataCID,
		Owner:       owner,
		MintedAt:    time.Now().UTC(),
	}

	c.mu.Lock()
	c.result = result
	c.lastErr = nil
	change, ok = c.setState(StateRevealed)
	c.mu.Unlock()
	c.publishChange(change, ok)

	c.logger.Infof("mint confirmed: token %s", result.TokenID.String())
	return result, nil
}

// fail 记录错误并进入 Errored
func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.lastErr = err
	change, ok := c.setState(StateErrored)
	c.mu.Unlock()
	c.publishChange(change, ok)

	c.logger.Errorf("mint failed: %v", err)
	return err
}

// Result 返回铸造结果，未确认时为nil
func (c *Controller) Result() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// RevealedImage 返回风格化图片
//
// 严格以 Revealed 状态为门槛：铸造确认前图片不可见
func (c *Controller) RevealedImage() (*style.StyledImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRevealed || c.result == nil {
		return nil, fmt.Errorf("image not revealed: mint not confirmed")
	}
	return c.styled, nil
}

// DownloadName 返回下载文件名（含token id）
func (c *Controller) DownloadName() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRevealed || c.result == nil {
		return "", fmt.Errorf("download not available: mint not confirmed")
	}
	return fmt.Sprintf("retromint-%s.png", c.result.TokenID.String()), nil
}

// ShareURL 返回社交分享链接
func (c *Controller) ShareURL() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRevealed || c.result == nil {
		return "", fmt.Errorf("share not available: mint not confirmed")
	}

	text := fmt.Sprintf("I just minted RetroMint PFP #%s! %s",
		c.result.TokenID.String(), storage.ToURI(c.result.MetadataCID))
	values := url.Values{}
	values.Set("text", text)
	return "https://twitter.com/intent/tweet?" + values.Encode(), nil
}
