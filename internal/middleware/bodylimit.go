package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// 请求体大小上限（按路由类型区分）
const (
	SmallBodyLimit   = 1 * 1024 * 1024 // 普通 API 请求
	WebhookBodyLimit = 64 * 1024       // Stripe webhook 负载
)

func rejectTooLarge(c *gin.Context, limit int64) {
	c.JSON(http.StatusRequestEntityTooLarge, gin.H{
		"error": "Request body too large",
		"msg":   fmt.Sprintf("request body exceeds %d bytes", limit),
		"limit": limit,
	})
	c.Abort()
}

func applyBodyLimit(c *gin.Context, limit int64) bool {
	if c.Request.ContentLength > limit {
		rejectTooLarge(c, limit)
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	c.Header("X-Max-Body-Size", strconv.FormatInt(limit, 10))
	return true
}

// BodySizeLimit 对所有请求应用统一的请求体大小上限。
// Content-Length 超限直接拒绝；未声明长度的请求由 MaxBytesReader 兜底。
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !applyBodyLimit(c, maxBytes) {
			return
		}
		c.Next()
	}
}

// DynamicBodySizeLimit 按路由模板查表应用上限，未命中的路由走默认值。
func DynamicBodySizeLimit(limits map[string]int64, defaultLimit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := limits[c.FullPath()]
		if !ok {
			limit = defaultLimit
		}
		if !applyBodyLimit(c, limit) {
			return
		}
		c.Next()
	}
}
