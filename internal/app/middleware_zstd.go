package app

import (
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/zstd"
)

// zstdEncoderPool 复用 zstd encoder 避免频繁分配
var zstdEncoderPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		return enc
	},
}

// zstdResponseWriter 包装 gin.ResponseWriter，按状态码决定是否压缩
// 重定向、204、304 不带响应体语义，原样输出
type zstdResponseWriter struct {
	gin.ResponseWriter
	encoder *zstd.Encoder
	decided bool
}

func (w *zstdResponseWriter) decide(code int) {
	w.decided = true
	if code < http.StatusOK || code == http.StatusNoContent || code == http.StatusNotModified ||
		(code >= http.StatusMultipleChoices && code < http.StatusBadRequest) {
		return
	}
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	enc.Reset(w.ResponseWriter)
	w.encoder = enc

	h := w.Header()
	h.Set("Content-Encoding", "zstd")
	// 压缩后长度未知，移除可能被提前设置的 Content-Length
	h.Del("Content-Length")
}

func (w *zstdResponseWriter) WriteHeader(code int) {
	if !w.decided {
		w.decide(code)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *zstdResponseWriter) Write(data []byte) (int, error) {
	if !w.decided {
		w.decide(w.Status())
	}
	if w.encoder == nil {
		return w.ResponseWriter.Write(data)
	}
	return w.encoder.Write(data)
}

func (w *zstdResponseWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}

// finish flush 并归还 encoder
func (w *zstdResponseWriter) finish() {
	if w.encoder == nil {
		return
	}
	_ = w.encoder.Close()
	zstdEncoderPool.Put(w.encoder)
	w.encoder = nil
}

// ZstdMiddleware 返回 gin 中间件，对支持 zstd 的客户端压缩管理页面与API响应
func ZstdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodHead || !strings.Contains(c.GetHeader("Accept-Encoding"), "zstd") {
			c.Next()
			return
		}

		c.Header("Vary", "Accept-Encoding")
		w := &zstdResponseWriter{ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		w.finish()
	}
}
