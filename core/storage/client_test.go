package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUploader(t *testing.T) {
	t.Run("凭证缺失且未开启降级时硬性失败", func(t *testing.T) {
		_, err := NewUploader(&Config{Endpoint: "https://pin.example"}, nil)
		assert.ErrorIs(t, err, ErrNoCredential)
	})

	t.Run("凭证缺失但开启降级时返回data URI上传器", func(t *testing.T) {
		up, err := NewUploader(&Config{AllowDataURI: true}, nil)
		require.NoError(t, err)
		assert.IsType(t, &DataURIUploader{}, up)
	})

	t.Run("配置凭证时返回HTTP上传器", func(t *testing.T) {
		up, err := NewUploader(&Config{Endpoint: "https://pin.example", Token: "secret"}, nil)
		require.NoError(t, err)
		assert.IsType(t, &HTTPUploader{}, up)
	})
}

func TestHTTPUploader(t *testing.T) {
	t.Run("上传二进制并返回CID", func(t *testing.T) {
		payload := []byte("styled image bytes")
		cid := CIDv0(payload)

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "image/png", r.Header.Get("Content-Type"))
			assert.Equal(t, "pfp.png", r.Header.Get("X-Name"))
			assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

			fmt.Fprintf(w, `{"cid":%q}`, cid)
		}))
		defer server.Close()

		up, err := NewUploader(&Config{Endpoint: server.URL, Token: "secret"}, nil)
		require.NoError(t, err)

		got, err := up.UploadBlob(context.Background(), "pfp.png", "image/png", payload)
		require.NoError(t, err)
		assert.Equal(t, cid, got)
	})

	t.Run("服务端CID与内容不一致时报错", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 一个格式合法但与内容无关的CIDv0
			fmt.Fprint(w, `{"cid":"QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"}`)
		}))
		defer server.Close()

		up, err := NewUploader(&Config{Endpoint: server.URL, Token: "secret"}, nil)
		require.NoError(t, err)

		_, err = up.UploadBlob(context.Background(), "pfp.png", "image/png", []byte("payload"))
		assert.ErrorContains(t, err, "cid mismatch")
	})

	t.Run("非2xx响应视为上传失败", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusPaymentRequired)
		}))
		defer server.Close()

		up, err := NewUploader(&Config{Endpoint: server.URL, Token: "secret"}, nil)
		require.NoError(t, err)

		_, err = up.UploadBlob(context.Background(), "pfp.png", "image/png", []byte("payload"))
		assert.ErrorContains(t, err, "upload failed")
	})

	t.Run("响应缺少cid字段时报错", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer server.Close()

		up, err := NewUploader(&Config{Endpoint: server.URL, Token: "secret"}, nil)
		require.NoError(t, err)

		_, err = up.UploadBlob(context.Background(), "pfp.png", "image/png", []byte("payload"))
		assert.ErrorContains(t, err, "missing cid")
	})

	t.Run("上传JSON文档", func(t *testing.T) {
		var received []byte
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			received = body
			fmt.Fprintf(w, `{"cid":%q}`, CIDv0(body))
		}))
		defer server.Close()

		up, err := NewUploader(&Config{Endpoint: server.URL, Token: "secret"}, nil)
		require.NoError(t, err)

		meta := NewTokenMetadata("Retro PFP #1", "blocky", "QmTest")
		cid, err := up.UploadJSON(context.Background(), "metadata.json", meta)
		require.NoError(t, err)
		assert.NotEmpty(t, cid)

		var decoded TokenMetadata
		require.NoError(t, json.Unmarshal(received, &decoded))
		assert.Equal(t, "ipfs://QmTest", decoded.Image)
	})
}

func TestDataURIUploader(t *testing.T) {
	up := &DataURIUploader{}

	t.Run("二进制内容内嵌为data URI", func(t *testing.T) {
		uri, err := up.UploadBlob(context.Background(), "pfp.png", "image/png", []byte{1, 2, 3})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "data:image/png;base64,"))
	})

	t.Run("JSON文档内嵌为data URI", func(t *testing.T) {
		uri, err := up.UploadJSON(context.Background(), "metadata.json", map[string]string{"name": "x"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(uri, "data:application/json;base64,"))
	})
}

func TestCIDv0(t *testing.T) {
	t.Run("相同内容CID一致", func(t *testing.T) {
		assert.Equal(t, CIDv0([]byte("abc")), CIDv0([]byte("abc")))
	})

	t.Run("不同内容CID不同", func(t *testing.T) {
		assert.NotEqual(t, CIDv0([]byte("abc")), CIDv0([]byte("abd")))
	})

	t.Run("Qm前缀", func(t *testing.T) {
		assert.True(t, strings.HasPrefix(CIDv0([]byte("abc")), "Qm"))
	})
}

func TestVerifyCIDv0(t *testing.T) {
	t.Run("非CIDv0格式跳过校验", func(t *testing.T) {
		assert.NoError(t, VerifyCIDv0("bafybeigdyrzt5example", []byte("anything")))
	})

	t.Run("CIDv0不匹配报错", func(t *testing.T) {
		assert.Error(t, VerifyCIDv0(CIDv0([]byte("a")), []byte("b")))
	})
}

func TestNewTokenMetadata(t *testing.T) {
	t.Run("裸CID补全ipfs前缀", func(t *testing.T) {
		meta := NewTokenMetadata("n", "d", "QmXYZ")
		assert.Equal(t, "ipfs://QmXYZ", meta.Image)
	})

	t.Run("data URI引用原样保留", func(t *testing.T) {
		meta := NewTokenMetadata("n", "d", "data:image/png;base64,AAAA")
		assert.Equal(t, "data:image/png;base64,AAAA", meta.Image)
	})
}
