// Package format 提供通用格式化工具函数
package format

import (
	"fmt"
	"math/big"
)

// FormatAddress 格式化地址（短格式）
//
// 功能：
//   - 只显示前后各 n 个字符，中间以 ... 省略
//
// 参数：
//   - address: 完整地址字符串
//   - prefixLen: 前缀长度
//   - suffixLen: 后缀长度
func FormatAddress(address string, prefixLen, suffixLen int) string {
	if len(address) <= prefixLen+suffixLen {
		return address
	}
	return address[:prefixLen] + "..." + address[len(address)-suffixLen:]
}

// FormatHashShort 格式化交易哈希（短格式）
func FormatHashShort(hash string, prefixLen, suffixLen int) string {
	return FormatAddress(hash, prefixLen, suffixLen)
}

// FormatFileSize 格式化文件大小为人类可读格式
func FormatFileSize(size int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// FormatWei 格式化Wei金额为ETH小数表示
//
// 功能：
//   - 1 ETH = 10^18 Wei
//   - 去除无意义的尾随零
func FormatWei(wei *big.Int) string {
	if wei == nil {
		return "0"
	}

	eth := new(big.Rat).SetFrac(wei, big.NewInt(1e18))
	s := eth.FloatString(18)

	// 去除尾随零和孤立小数点
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "" {
		return "0"
	}
	return s
}
