package chain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 回执解码错误
var (
	// ErrTxFailed 交易回执状态为失败（链上revert）
	ErrTxFailed = errors.New("mint transaction reverted")

	// ErrNoMintEvent 回执成功但找不到属于调用账户的铸造事件
	// 视为歧义确认，必须作为错误上报而非静默当作成功
	ErrNoMintEvent = errors.New("no decodable mint event for caller in receipt")
)

// MintedEvent 专用铸造事件（优先来源）
type MintedEvent struct {
	Owner   common.Address
	TokenID *big.Int
	URI     string
}

// TransferEvent 标准所有权转移事件（回退来源）
//
// 铸造场景下from为零地址
type TransferEvent struct {
	From    common.Address
	To      common.Address
	TokenID *big.Int
}

// MintOutcome 确认后的铸造结果
type MintOutcome struct {
	TokenID *big.Int
	TxHash  common.Hash
	URI     string // 专用事件携带的内容引用；回退来源时为空
}

// decodeMinted 严格解码Minted事件
//
// 形状不符（topic数量、地址来源、数据段）一律视为不匹配而非抛错
func (s *Service) decodeMinted(lg *types.Log) (*MintedEvent, bool) {
	ev, ok := s.abi.Events["Minted"]
	if !ok {
		return nil, false
	}
	if len(lg.Topics) != 3 || lg.Topics[0] != ev.ID {
		return nil, false
	}
	if lg.Address != s.address {
		return nil, false
	}

	out, err := s.abi.Unpack("Minted", lg.Data)
	if err != nil || len(out) != 1 {
		return nil, false
	}
	uri, ok := out[0].(string)
	if !ok {
		return nil, false
	}

	return &MintedEvent{
		Owner:   common.BytesToAddress(lg.Topics[1].Bytes()),
		TokenID: new(big.Int).SetBytes(lg.Topics[2].Bytes()),
		URI:     uri,
	}, true
}

// decodeTransfer 严格解码Transfer事件
func (s *Service) decodeTransfer(lg *types.Log) (*TransferEvent, bool) {
	ev, ok := s.abi.Events["Transfer"]
	if !ok {
		return nil, false
	}
	if len(lg.Topics) != 4 || lg.Topics[0] != ev.ID {
		return nil, false
	}
	if lg.Address != s.address {
		return nil, false
	}
	if len(lg.Data) != 0 {
		// ERC-721的Transfer三个参数全部indexed，带数据段的是ERC-20形状
		return nil, false
	}

	return &TransferEvent{
		From:    common.BytesToAddress(lg.Topics[1].Bytes()),
		To:      common.BytesToAddress(lg.Topics[2].Bytes()),
		TokenID: new(big.Int).SetBytes(lg.Topics[3].Bytes()),
	}, true
}

// ExtractMintOutcome 从回执中解码铸造结果
//
// 规则：
//   - 回执状态失败 → ErrTxFailed
//   - 优先使用发给owner的Minted事件
//   - 回退使用零地址转出、发给owner的Transfer事件
//   - 其他账户的事件一律忽略（只认当前账户）
//   - 成功回执但无可解码事件 → ErrNoMintEvent（歧义确认）
func (s *Service) ExtractMintOutcome(receipt *types.Receipt, owner common.Address) (*MintOutcome, error) {
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, ErrTxFailed
	}

	var fallback *MintOutcome

	for _, lg := range receipt.Logs {
		if minted, ok := s.decodeMinted(lg); ok {
			if minted.Owner != owner {
				continue
			}
			return &MintOutcome{
				TokenID: minted.TokenID,
				TxHash:  receipt.TxHash,
				URI:     minted.URI,
			}, nil
		}

		if transfer, ok := s.decodeTransfer(lg); ok {
			if transfer.To != owner || transfer.From != (common.Address{}) {
				continue
			}
			if fallback == nil {
				fallback = &MintOutcome{
					TokenID: transfer.TokenID,
					TxHash:  receipt.TxHash,
				}
			}
		}
	}

	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrNoMintEvent
}
