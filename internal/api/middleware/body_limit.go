package middleware

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"cscenter/backend/pkg/response"
)

const rawBodyKey = "body_limit_raw"

// BodyLimit 请求体大小限制中间件
// 嵌套使用时以最内层的限制为准（附件上传路由放宽限制）
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			raw := c.Request.Body
			if v, ok := c.Get(rawBodyKey); ok {
				raw = v.(io.ReadCloser)
			} else {
				c.Set(rawBodyKey, raw)
			}
			c.Request.Body = http.MaxBytesReader(c.Writer, raw, maxBytes)
		}

		c.Next()

		if c.IsAborted() || c.Writer.Written() {
			return
		}
		for _, err := range c.Errors {
			var tooLarge *http.MaxBytesError
			if errors.As(err.Err, &tooLarge) {
				response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
				return
			}
		}
	}
}
