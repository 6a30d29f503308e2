package storage

// TokenMetadata 代币元数据文档
//
// 随图像一起上传，image字段内嵌图像的内容引用；
// 元数据文档自身的内容引用作为tokenURI传入铸造调用
type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// NewTokenMetadata 构建元数据文档
//
// imageCID为裸CID时补全ipfs://前缀；data URI降级引用原样保留
func NewTokenMetadata(name, description, imageCID string) *TokenMetadata {
	return &TokenMetadata{
		Name:        name,
		Description: description,
		Image:       ToURI(imageCID),
	}
}

// ToURI 将内容引用转换为URI形式
//
// 裸CID补全ipfs://前缀；已带scheme的引用原样返回
func ToURI(ref string) string {
	if isURI(ref) {
		return ref
	}
	return "ipfs://" + ref
}

// isURI 判断引用是否已带scheme
func isURI(ref string) bool {
	for i := 0; i < len(ref); i++ {
		switch {
		case ref[i] == ':':
			return i > 0
		case (ref[i] >= 'a' && ref[i] <= 'z') || (ref[i] >= 'A' && ref[i] <= 'Z'):
			continue
		default:
			return false
		}
	}
	return false
}
