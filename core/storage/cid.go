package storage

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// CIDv0 计算内容的CIDv0标识
//
// CIDv0 = base58btc(0x12 0x20 || sha2-256(data))
// 0x12为sha2-256的multihash编码，0x20为摘要长度(32字节)
func CIDv0(data []byte) string {
	digest := sha256.Sum256(data)

	multihash := make([]byte, 0, 34)
	multihash = append(multihash, 0x12, 0x20)
	multihash = append(multihash, digest[:]...)

	return base58.Encode(multihash)
}

// VerifyCIDv0 校验服务端返回的内容引用与本地内容一致
//
// 仅对CIDv0（Qm前缀）执行校验；CIDv1等其他格式跳过（需要完整的
// multiformats解析，服务端格式不在本客户端控制范围内）
func VerifyCIDv0(cid string, data []byte) error {
	if !strings.HasPrefix(cid, "Qm") {
		return nil
	}

	expected := CIDv0(data)
	if cid != expected {
		return fmt.Errorf("cid mismatch: service=%s local=%s", cid, expected)
	}
	return nil
}
