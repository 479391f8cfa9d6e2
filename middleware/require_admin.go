package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRoles xác thực token rồi chỉ cho qua các vai trò được liệt kê.
func RequireRoles(allowedRoles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if !authenticate(c) {
			return
		}

		role := c.GetString("role")
		if role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Không xác định được vai trò người dùng"})
			return
		}
		if _, ok := allowed[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Bạn không có quyền truy cập tài nguyên này"})
			return
		}
		c.Next()
	}
}
