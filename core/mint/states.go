// Package mint implements the mint workflow controller.
package mint

// State 铸造流程状态
//
// 状态机: Idle → ImageSelected → StylePrepared → Uploading →
// AwaitingSignature → AwaitingConfirmation → Revealed
// Errored 可从 Uploading/AwaitingSignature/AwaitingConfirmation 到达，
// 并允许直接重试（Errored → Uploading）
type State int

const (
	// StateIdle 初始状态，未选择图片
	StateIdle State = iota
	// StateImageSelected 已选择源图片
	StateImageSelected
	// StateStylePrepared 风格化图片已生成（对用户隐藏）
	StateStylePrepared
	// StateUploading 正在上传图片和元数据
	StateUploading
	// StateAwaitingSignature 等待钱包签名
	StateAwaitingSignature
	// StateAwaitingConfirmation 等待链上确认
	StateAwaitingConfirmation
	// StateRevealed 铸造成功，图片可见
	StateRevealed
	// StateErrored 流程出错，可重试
	StateErrored
)

// String 返回状态名称
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateImageSelected:
		return "image_selected"
	case StateStylePrepared:
		return "style_prepared"
	case StateUploading:
		return "uploading"
	case StateAwaitingSignature:
		return "awaiting_signature"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateRevealed:
		return "revealed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// transitions 状态转换表
//
// 选择新图片在任意状态下都会回到 ImageSelected，不在此表中（见 SelectImage）
var transitions = map[State][]State{
	StateIdle:                 {StateImageSelected},
	StateImageSelected:        {StateImageSelected, StateStylePrepared},
	StateStylePrepared:        {StateImageSelected, StateStylePrepared, StateUploading},
	StateUploading:            {StateAwaitingSignature, StateErrored},
	StateAwaitingSignature:    {StateAwaitingConfirmation, StateErrored},
	StateAwaitingConfirmation: {StateRevealed, StateErrored},
	StateRevealed:             {StateImageSelected},
	// Errored → Uploading 即隐式的 Errored → StylePrepared 重试路径
	StateErrored: {StateImageSelected, StateStylePrepared, StateUploading},
}

// canTransition 检查状态转换是否合法
func canTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal 是否为终止状态（铸造完成）
func (s State) IsTerminal() bool {
	return s == StateRevealed
}

// InProgress 是否处于进行中的状态（此时禁用铸造触发）
func (s State) InProgress() bool {
	switch s {
	case StateUploading, StateAwaitingSignature, StateAwaitingConfirmation:
		return true
	default:
		return false
	}
}
