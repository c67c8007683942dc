package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// NoStore forbids any cache from keeping the response. Attempt state and
// papers are per-user and change on every answer.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "private, no-store")
		c.Next()
	}
}

// CacheControl lets shared caches keep the response for maxAgeSeconds.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}
