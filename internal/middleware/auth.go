// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"streamgate-go/internal/auth"
	"streamgate-go/internal/core"
)

const identityContextKey = "identity"

// AuthMiddleware 创建一个 Gin 中间件，用于校验 Authorization 头中的
// bearer token，并把验证后的 core.Identity 存入 Gin 上下文，供后续
// 处理函数通过 IdentityFromContext 读取。
func AuthMiddleware(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := verifier.VerifyHTTP(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(StatusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.Set(identityContextKey, identity)
		c.Next()
	}
}

// IdentityFromContext 读取 AuthMiddleware 存入的 core.Identity。
func IdentityFromContext(c *gin.Context) core.Identity {
	v, ok := c.Get(identityContextKey)
	if !ok {
		return core.Identity{}
	}
	identity, _ := v.(core.Identity)
	return identity
}

// StatusFor maps a component's *core.Error kind to an HTTP status code.
// Shared by every HTTP-facing handler so the mapping stays in one place.
func StatusFor(err error) int {
	switch core.KindOf(err) {
	case core.KindUnauthenticated:
		return http.StatusUnauthorized
	case core.KindBadRequest:
		return http.StatusBadRequest
	case core.KindConflict:
		return http.StatusConflict
	case core.KindUnavailable:
		return http.StatusServiceUnavailable
	case core.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
