// Package storage 提供去中心化存储上传客户端
//
// 对接HTTP固定服务（pinning service风格）：上传二进制与JSON文档，
// 返回内容寻址标识（CID）。凭证缺失视为硬性前置失败，
// 仅在显式开启时降级为内嵌data URI（非生产场景）
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/retromint/v1/pkg/ux/ui"
)

// ErrNoCredential 未配置存储服务凭证
var ErrNoCredential = errors.New("storage credential not configured")

// Uploader 存储上传接口
//
// 每次铸造需要两次顺序调用：先传图像获得CID，再传内嵌该CID的元数据文档
type Uploader interface {
	// UploadBlob 上传二进制内容，返回内容引用
	UploadBlob(ctx context.Context, name string, contentType string, data []byte) (string, error)

	// UploadJSON 上传JSON文档，返回内容引用
	UploadJSON(ctx context.Context, name string, v interface{}) (string, error)
}

// Config 存储客户端配置
type Config struct {
	Endpoint string `json:"endpoint"` // 上传服务地址
	Token    string `json:"token"`    // Bearer凭证

	// AllowDataURI 凭证缺失时是否降级为内嵌data URI
	// 仅用于本地开发，生产配置必须提供凭证
	AllowDataURI bool `json:"allow_data_uri,omitempty"`

	Timeout time.Duration `json:"-"` // 单次上传超时，0使用默认值
}

// NewUploader 根据配置创建上传器
//
// 凭证缺失且未开启降级时返回 ErrNoCredential（不静默绕过）
func NewUploader(cfg *Config, logger ui.Logger) (Uploader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage config is nil")
	}

	if cfg.Token == "" {
		if !cfg.AllowDataURI {
			return nil, ErrNoCredential
		}
		ui.OrNoop(logger).Warn("存储凭证未配置，降级为内嵌data URI（仅限本地验证）")
		return &DataURIUploader{}, nil
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &HTTPUploader{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		token:    cfg.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: ui.OrNoop(logger),
	}, nil
}

// HTTPUploader 基于HTTP固定服务的上传器实现
type HTTPUploader struct {
	endpoint   string
	token      string
	httpClient *http.Client
	logger     ui.Logger
}

// uploadResponse 上传服务响应体
type uploadResponse struct {
	Cid string `json:"cid"`
}

// UploadBlob 实现 Uploader 接口
func (u *HTTPUploader) UploadBlob(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	return u.post(ctx, name, contentType, data)
}

// UploadJSON 实现 Uploader 接口
func (u *HTTPUploader) UploadJSON(ctx context.Context, name string, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return u.post(ctx, name, "application/json", body)
}

// post 统一的上传调用
func (u *HTTPUploader) post(ctx context.Context, name string, contentType string, data []byte) (string, error) {
	attemptID := uuid.NewString()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+u.token)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Name", name)
	req.Header.Set("X-Request-Id", attemptID)

	u.logger.Debugf("上传开始: name=%s type=%s size=%d request_id=%s", name, contentType, len(data), attemptID)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			u.logger.Warnf("close response body: %v", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read upload response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("upload failed: status=%d body=%s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal upload response: %w", err)
	}
	if result.Cid == "" {
		return "", fmt.Errorf("upload response missing cid")
	}

	// 服务端返回CIDv0时做本地一致性校验
	if err := VerifyCIDv0(result.Cid, data); err != nil {
		return "", fmt.Errorf("verify content reference: %w", err)
	}

	u.logger.Infof("上传完成: name=%s cid=%s", name, result.Cid)
	return result.Cid, nil
}

// truncate 截断过长的错误响应体
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// DataURIUploader 内嵌data URI降级实现（非生产）
//
// 不产生真实的内容寻址引用，仅保证铸造流程可以在无凭证环境下端到端验证
type DataURIUploader struct{}

// UploadBlob 实现 Uploader 接口
func (u *DataURIUploader) UploadBlob(_ context.Context, _ string, contentType string, data []byte) (string, error) {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// UploadJSON 实现 Uploader 接口
func (u *DataURIUploader) UploadJSON(_ context.Context, _ string, v interface{}) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString(body), nil
}
